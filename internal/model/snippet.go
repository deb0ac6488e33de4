// Package model defines the data structures shared by the repositories,
// services and handlers.
package model

import "time"

// Snippet is a saved piece of code. Every save re-runs the policy check
// and records the verdict, so a listing shows which snippets would be
// rejected without running them.
type Snippet struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Code        string `json:"code"`
	Description string `json:"description"`
	// UserID is the operator who saved it; empty when auth is disabled.
	UserID string `json:"userId,omitempty"`
	// Accepted is the policy verdict at the time of the last save.
	Accepted bool `json:"accepted"`
	// Rejection is the first violation when Accepted is false.
	Rejection string    `json:"rejection,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
