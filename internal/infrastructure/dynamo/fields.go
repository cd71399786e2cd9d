package dynamo

// Attribute and index names of the users table.
const (
	fieldUserID    = "user_id"
	fieldEmail     = "email"
	fieldUsername  = "username"
	fieldUpdatedAt = "updated_at"

	emailIndex    = "email-index"
	usernameIndex = "username-index"
)

// Guard items share the users table and reserve a unique value under a
// synthetic key. They carry no email or username attribute, so the GSIs
// never see them.
const (
	emailGuardPrefix    = "email#"
	usernameGuardPrefix = "username#"
)
