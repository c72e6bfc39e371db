package types

// MessageAuthor identifies who produced a message.
type MessageAuthor string

const (
	AuthorUser      MessageAuthor = "user"
	AuthorAssistant MessageAuthor = "assistant"
	AuthorSystem    MessageAuthor = "system"
)

// Message is one entry in a session's append-only chat log. Messages are
// never mutated or reordered after they are appended.
type Message struct {
	ID           string         `json:"id"`
	SessionID    string         `json:"sessionID"`
	Author       MessageAuthor  `json:"author"`
	Content      string         `json:"content"`
	CreatedAt    int64          `json:"createdAt"`
	ParentStepID *string        `json:"parentStepID,omitempty"` // Links to the step that produced this
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Clone returns a copy safe to hand outside the owning session.
func (m *Message) Clone() *Message {
	c := *m
	if m.ParentStepID != nil {
		pid := *m.ParentStepID
		c.ParentStepID = &pid
	}
	if m.Metadata != nil {
		c.Metadata = make(map[string]any, len(m.Metadata))
		for k, v := range m.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}
