package common

// HTTP headers and auth schemes of the appdata REST API.
const (
	AuthorizationHeader = "Authorization"
	AuthSchemeKinvey    = "Kinvey"
	AuthSchemeBasic     = "Basic"
	APIVersionHeader    = "X-Kinvey-API-Version"
	APIVersion          = "3"
)

// gRPC metadata keys.
const (
	AccessTokenMetadataKey = "access_token"
	AppKeyMetadataKey      = "app_key"
)

// Reserved entity fields.
const (
	FieldID       = "_id"
	FieldMetadata = "_kmd"
	FieldACL      = "_acl"
	FieldCreated  = "ect"
	FieldModified = "lmt"
	FieldCreator  = "creator"
)

// BlobCollection holds file metadata entities.
const BlobCollection = "_blob"

// User entity fields.
const (
	FieldUsername  = "username"
	FieldPassword  = "password"
	FieldAuthToken = "authtoken"
)

// Fields the backend adds to _blob entities.
const (
	FieldUploadURL   = "_uploadURL"
	FieldDownloadURL = "_downloadURL"
	FieldFilename    = "_filename"
	FieldSize        = "size"
)
