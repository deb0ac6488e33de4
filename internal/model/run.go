package model

import "time"

// Run is the record of one gatekeeper call. Source is stored so an
// operator can replay it; it is never logged.
type Run struct {
	ID        string `json:"id"`
	SnippetID string `json:"snippetId,omitempty"`
	// Caller is the user or client ID that made the call, if known.
	Caller  string `json:"caller,omitempty"`
	Backend string `json:"backend"`
	Code    string `json:"code"`
	OK      bool   `json:"ok"`
	// Kind is empty on success, otherwise one of SyntaxError,
	// PolicyViolation, RuntimeError, Timeout, ResourceLimit.
	Kind       string     `json:"kind,omitempty"`
	Reason     string     `json:"reason,omitempty"`
	Output     string     `json:"output"`
	DurationMS int64      `json:"durationMs"`
	Steps      int64      `json:"steps,omitempty"`
	Artifacts  []Artifact `json:"artifacts,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// Artifact is a file a run produced. Data is only loaded when the
// artifact itself is requested.
type Artifact struct {
	Name      string `json:"name"`
	MediaType string `json:"mediaType"`
	Size      int    `json:"size"`
	Data      []byte `json:"-"`
}
