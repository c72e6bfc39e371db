package types

// StepType classifies a traced unit of work.
type StepType string

const (
	StepTypeTool      StepType = "tool"
	StepTypeLLM       StepType = "llm"
	StepTypeEmbedding StepType = "embedding"
	StepTypeRetrieval StepType = "retrieval"
	StepTypeRun       StepType = "run"
	StepTypeOther     StepType = "other"
)

// StepStatus describes a step's outcome.
type StepStatus string

const (
	StepRunning   StepStatus = "running"
	StepSucceeded StepStatus = "succeeded"
	StepFailed    StepStatus = "failed"
	StepStopped   StepStatus = "stopped"
)

// Step is an immutable-after-close record of one traced unit of work. Steps
// form the chain of thought: parent/child links are ids into the owning
// session's step arena, never direct references. A step is created when a
// wrapped function is entered, mutated only by the task that opened it, and
// closed exactly once on every exit path.
type Step struct {
	ID        string         `json:"id"`
	SessionID string         `json:"sessionID"`
	ParentID  *string        `json:"parentID,omitempty"` // nil only for a root step
	Type      StepType       `json:"type"`
	Name      string         `json:"name"`
	Input     Value          `json:"input,omitempty"`
	Output    Value          `json:"output,omitempty"`
	Status    StepStatus     `json:"status"`
	StartedAt int64          `json:"startedAt"`
	EndedAt   *int64         `json:"endedAt,omitempty"` // nil while running
	Children  []string       `json:"children,omitempty"`
	Meta      map[string]any `json:"meta,omitempty"`
}

// Closed reports whether the step has reached a terminal status.
func (s *Step) Closed() bool {
	return s.EndedAt != nil
}

// Clone returns a deep copy safe to hand outside the owning task.
func (s *Step) Clone() *Step {
	c := *s
	if s.ParentID != nil {
		pid := *s.ParentID
		c.ParentID = &pid
	}
	if s.EndedAt != nil {
		end := *s.EndedAt
		c.EndedAt = &end
	}
	if s.Children != nil {
		c.Children = append([]string(nil), s.Children...)
	}
	if s.Meta != nil {
		c.Meta = make(map[string]any, len(s.Meta))
		for k, v := range s.Meta {
			c.Meta[k] = v
		}
	}
	return &c
}
