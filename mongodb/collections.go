package mongodb

const (
	UsersCollection       = "users"
	CredentialsCollection = "provider_credentials"
)
