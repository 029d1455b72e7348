package domain

// User is a registered session participant. The host flag is decided when the
// user is first created and never changes afterwards.
type User struct {
	Username string `json:"username"`
	IsHost   bool   `json:"is_host"`
}
