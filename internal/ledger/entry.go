package ledger

import (
	"fmt"
	"strings"
	"time"
)

// ActionType is the kind of filesystem mutation recorded.
type ActionType string

const (
	ActionMove   ActionType = "move"
	ActionCopy   ActionType = "copy"
	ActionDelete ActionType = "delete"
)

// ParseActionType accepts a type name in any case.
func ParseActionType(value string) (ActionType, bool) {
	switch t := ActionType(strings.ToLower(strings.TrimSpace(value))); t {
	case ActionMove, ActionCopy, ActionDelete:
		return t, true
	}
	return "", false
}

// Status is an entry's lifecycle state. It only moves from executed to undone.
type Status string

const (
	StatusExecuted Status = "executed"
	StatusUndone   Status = "undone"
)

// Entry is one recorded action.
type Entry struct {
	ID          int               `json:"id"`
	Type        ActionType        `json:"type"`
	Source      string            `json:"source"`
	Destination string            `json:"destination,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
	Status      Status            `json:"status"`
	Backup      string            `json:"backup,omitempty"`
	Remote      bool              `json:"remote,omitempty"`
	UndoneAt    *time.Time        `json:"undone_at,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Describe renders a one-line summary of the entry.
func (e Entry) Describe() string {
	switch e.Type {
	case ActionDelete:
		return fmt.Sprintf("%s %s", strings.ToUpper(string(e.Type)), e.Source)
	default:
		return fmt.Sprintf("%s %s -> %s", strings.ToUpper(string(e.Type)), e.Source, e.Destination)
	}
}

func (e Entry) validate() error {
	if _, ok := ParseActionType(string(e.Type)); !ok {
		return fmt.Errorf("unknown action type %q", e.Type)
	}
	if strings.TrimSpace(e.Source) == "" {
		return fmt.Errorf("source is required")
	}
	if (e.Type == ActionMove || e.Type == ActionCopy) && strings.TrimSpace(e.Destination) == "" {
		return fmt.Errorf("%s requires a destination", e.Type)
	}
	return nil
}

// Outcome reports what happened to one id during Undo.
type Outcome struct {
	ID          int        `json:"id"`
	Type        ActionType `json:"type,omitempty"`
	Source      string     `json:"source,omitempty"`
	Destination string     `json:"destination,omitempty"`
	Preview     bool       `json:"preview,omitempty"`
	Reason      string     `json:"reason,omitempty"`
	Err         error      `json:"-"`
}

// UndoResult partitions the requested ids.
type UndoResult struct {
	Undone []Outcome `json:"undone"`
	Failed []Outcome `json:"failed"`
}

// Filter narrows History.
type Filter struct {
	Type   ActionType
	Limit  int
	Offset int
}

// Stats summarizes ledger contents.
type Stats struct {
	Total    int                `json:"total"`
	ByType   map[ActionType]int `json:"by_type"`
	Executed int                `json:"executed"`
	Undone   int                `json:"undone"`
	Remote   int                `json:"remote"`
	NextID   int                `json:"next_id"`
}
