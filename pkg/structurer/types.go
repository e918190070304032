// Package structurer converts a captured page image into structured task
// records using a multimodal model, with an offline fallback engine.
package structurer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Status values recognised on the page.
type Status string

const (
	StatusNotStarted Status = "NOT_STARTED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusMeeting    Status = "MEETING"
)

// Valid reports whether the status is one of the recognised values.
func (s Status) Valid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusCompleted, StatusMeeting:
		return true
	}
	return false
}

// Task is one extracted TODO item. Subtasks nest one level per indentation
// step on the page.
type Task struct {
	Name        string    `json:"name"`
	Status      Status    `json:"status"`
	PlannedAt   Timestamp `json:"plannedAt"`
	StartedAt   Timestamp `json:"startedAt"`
	CompletedAt Timestamp `json:"completedAt"`
	Order       int       `json:"order"`
	ProjectRef  string    `json:"projectRef"`
	Subtasks    []Task    `json:"subtasks,omitempty"`
}

// Page is the structured result of one scan.
type Page struct {
	Tasks []Task `json:"tasks"`
}

// StatusOrder returns the top-level task statuses in page order.
func (p *Page) StatusOrder() []string {
	order := make([]string, len(p.Tasks))
	for i, t := range p.Tasks {
		order[i] = string(t.Status)
	}
	return order
}

// ApplyStatusOrder overwrites top-level task statuses with a freshly
// detected symbol order. Extra detections beyond the known tasks are
// ignored; the caller falls back to a full scan when counts differ.
func (p *Page) ApplyStatusOrder(order []string) {
	for i := range p.Tasks {
		if i >= len(order) {
			break
		}
		s := Status(order[i])
		if s.Valid() {
			p.Tasks[i].Status = s
		}
	}
}

// Project is a grouping key from the store, offered to the model so it can
// assign projectRef per task.
type Project struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Engine is the structuring service contract: image in, structured page out.
type Engine interface {
	Structure(ctx context.Context, jpeg []byte) (*Page, error)
}

// Timestamp is a nullable point in time as it appears on the wire. The
// model is instructed to emit JSON null, but responses have historically
// contained "null", "N/A" and several date layouts, all tolerated here.
type Timestamp struct {
	time.Time
	Valid bool
}

// NewTimestamp wraps a concrete time.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t, Valid: true}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// UnmarshalJSON accepts null, legacy placeholder strings, and known layouts.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*t = Timestamp{}
		return nil
	}

	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("timestamp must be a string or null: %s", s)
	}

	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" || raw == "N/A" {
		*t = Timestamp{}
		return nil
	}

	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			*t = Timestamp{Time: parsed, Valid: true}
			return nil
		}
	}

	return fmt.Errorf("unparseable timestamp %q", raw)
}

// MarshalJSON emits RFC3339 or null.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if !t.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(time.RFC3339))
}

// ParsePage validates and decodes a structured-page JSON document.
// Malformed documents are rejected whole so no partial write reaches the
// persistence sink.
func ParsePage(data []byte) (*Page, error) {
	var page Page
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, fmt.Errorf("decode page: %w", err)
	}
	if len(page.Tasks) == 0 {
		return nil, fmt.Errorf("page contains no tasks")
	}

	var validate func(tasks []Task, depth int) error
	validate = func(tasks []Task, depth int) error {
		for i, task := range tasks {
			if strings.TrimSpace(task.Name) == "" {
				return fmt.Errorf("task %d at depth %d has an empty name", i, depth)
			}
			if !task.Status.Valid() {
				return fmt.Errorf("task %q has unknown status %q", task.Name, task.Status)
			}
			if err := validate(task.Subtasks, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := validate(page.Tasks, 0); err != nil {
		return nil, err
	}

	return &page, nil
}
