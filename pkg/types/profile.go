package types

// Starter is a suggested opening message surfaced before the first user turn.
type Starter struct {
	Label   string `json:"label"`
	Message string `json:"message"`
	Icon    string `json:"icon,omitempty"`
}

// ChatProfile is a named, user-selectable configuration variant offered at
// session start.
type ChatProfile struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Icon        string `json:"icon,omitempty"`
	Default     bool   `json:"default,omitempty"`
}
