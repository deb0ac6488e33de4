package model

import "time"

// Client is an agent caller that authenticates with client credentials.
// Only the bcrypt hash of its secret is stored.
type Client struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	SecretHash string     `json:"-"`
	CreatedAt  time.Time  `json:"createdAt"`
	LastUsedAt *time.Time `json:"lastUsedAt,omitempty"`
}
