package vault

// Type represents the type of vault.
type Type string

const (
	// TypeDotEnv reads secrets from the environment and dotenv files.
	TypeDotEnv Type = "dotenv"
)
