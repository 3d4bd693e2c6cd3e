package constants

// Default names used when a revision binding leaves a field empty.
const (
	DefaultConnectionName    = "surrealdb"
	DefaultCollection        = "revision"
	DefaultOwnerIDField      = "ownerId"
	DefaultOwnerModelField   = "ownerModel"
	DefaultRevisionDateField = "revisionDate"
	DefaultRevisionUserField = "revisionUser"
)

// SurrealDB specifics
const (
	// SurrealIdentityField is the field SurrealDB reserves for the record ID.
	SurrealIdentityField = "id"

	DefaultSurrealEndpoint = "ws://localhost:8000"
	DefaultSurrealUsername = "root"
	DefaultSurrealPassword = "root"
)

var (
	WebsocketScheme       = "ws"
	WebsocketSecureScheme = "wss"
	HTTPScheme            = "http"
	HTTPSecureScheme      = "https"
)
