package tokens

const (
	// the unique index on user_id makes concurrent issuance collapse to
	// a single row; the losing insert simply finds the winner's token
	queryInsertToken = `
		INSERT INTO auth_tokens (key, user_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO NOTHING
	`

	queryFindByKey = `
		SELECT key, user_id, created_at
		FROM auth_tokens
		WHERE key = $1
	`

	queryFindByUserID = `
		SELECT key, user_id, created_at
		FROM auth_tokens
		WHERE user_id = $1
	`

	queryDeleteByUserID = `
		DELETE FROM auth_tokens
		WHERE user_id = $1
	`
)
