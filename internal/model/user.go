package model

import "time"

// User is an operator who signed in with GitHub. GitHubID is the stable
// external identity; ID is ours (xid).
type User struct {
	ID        string    `json:"id"`
	GitHubID  int64     `json:"githubId"`
	Login     string    `json:"login"`
	Email     string    `json:"email"` // empty when hidden on GitHub
	AvatarURL string    `json:"avatarUrl"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
