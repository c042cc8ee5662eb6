package model

// Credentials authenticate against the source-control host with HTTP basic
// auth. A nil *Credentials means anonymous access.
type Credentials struct {
	Username string
	Password string `masq:"secret"`
}
