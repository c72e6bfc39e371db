package types

// Action is a user-interactable control bound to a named callback,
// attachable to an outgoing message. Removed is monotonic: once an action is
// removed it never comes back, and removing it again is a no-op.
type Action struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	Label             string  `json:"label,omitempty"`
	Payload           Value   `json:"payload,omitempty"`
	AttachedMessageID *string `json:"attachedMessageID,omitempty"`
	Removed           bool    `json:"removed"`
}

// Clone returns a copy safe to hand outside the owning session.
func (a *Action) Clone() *Action {
	c := *a
	if a.AttachedMessageID != nil {
		mid := *a.AttachedMessageID
		c.AttachedMessageID = &mid
	}
	return &c
}
