package users

const (
	userColumns = `id, username, email, password_hash, first_name, last_name, avatar_url, created_at, updated_at`

	queryInsertUser = `
		INSERT INTO users (id, username, email, password_hash, first_name, last_name, avatar_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + userColumns + `
	`

	queryFindByID = `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1
	`

	queryFindByEmail = `
		SELECT ` + userColumns + `
		FROM users
		WHERE email = $1
	`

	queryFindByUsername = `
		SELECT ` + userColumns + `
		FROM users
		WHERE username = $1
	`

	queryUsernameExists = `
		SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)
	`

	queryUpdatePassword = `
		UPDATE users
		SET password_hash = $1, updated_at = NOW()
		WHERE id = $2
	`

	// %s is a whitelisted social column name (see socialColumn)
	queryFmtFindBySocialID = `
		SELECT u.id, u.username, u.email, u.password_hash, u.first_name, u.last_name, u.avatar_url, u.created_at, u.updated_at
		FROM users u
		JOIN social_accounts s ON s.user_id = u.id
		WHERE s.%s = $1
	`

	// upsert that only fills an empty slot: a (provider, external id)
	// pair, once set, is never reassigned
	queryFmtLinkSocial = `
		INSERT INTO social_accounts (user_id, %[1]s)
		VALUES ($1, $2)
		ON CONFLICT (user_id)
		DO UPDATE SET %[1]s = EXCLUDED.%[1]s
		WHERE social_accounts.%[1]s IS NULL
		RETURNING user_id
	`

	queryFmtInsertSocial = `
		INSERT INTO social_accounts (user_id, %s)
		VALUES ($1, $2)
	`
)
