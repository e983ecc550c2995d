// Package identity defines the durable identity record and the credential
// verifier that turns a bearer token into one.
package identity

// Identity is the durable user identity carried by a verified credential.
// The presence directory and the conversation store key on Email; ID points
// back at the account row that minted the token.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Key returns the directory/store key for this identity.
func (id Identity) Key() string {
	return id.Email
}
