package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// Complexity enumerates supported coloring-page detail levels.
type Complexity string

const (
	ComplexitySimple   Complexity = "simple"
	ComplexityStandard Complexity = "standard"
	ComplexityDetailed Complexity = "detailed"
)

// LineThickness enumerates supported stroke-width bands.
type LineThickness string

const (
	LineThin   LineThickness = "thin"
	LineMedium LineThickness = "medium"
	LineThick  LineThickness = "thick"
)

// MaxEditsPerOriginal bounds the number of derivative jobs a single original
// job may spawn, regardless of the derivatives' statuses.
const MaxEditsPerOriginal = 2

// JobParams carries the user-supplied generation parameters. An edit job is
// identified by a non-empty EditParentID; edits inherit the parent's
// complexity, thickness, and custom prompt unless overridden at submission.
type JobParams struct {
	Complexity    Complexity
	LineThickness LineThickness
	CustomPrompt  string
	SourceAssetID string
	EditParentID  string
	EditPrompt    string
}

// Job encapsulates one trip through the generation pipeline.
type Job struct {
	ID           string
	UserID       string
	Status       JobStatus
	Params       JobParams
	Model        string
	Cost         float64
	ErrorMessage string
	StartedAt    *time.Time
	EndedAt      *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsEdit reports whether the job derives from an earlier succeeded job.
func (j Job) IsEdit() bool {
	return j.Params.EditParentID != ""
}

// Terminal reports whether the status can never change again.
func (s JobStatus) Terminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed
}

// CanTransition reports whether moving from one status to another is legal.
// The machine is one-directional: queued -> running -> {succeeded, failed}.
func CanTransition(from, to JobStatus) bool {
	switch to {
	case JobStatusRunning:
		return from == JobStatusQueued
	case JobStatusSucceeded, JobStatusFailed:
		return from == JobStatusRunning
	default:
		return false
	}
}

// Validate checks enumerated values and the presence of a generation subject.
func (p JobParams) Validate() error {
	switch p.Complexity {
	case ComplexitySimple, ComplexityStandard, ComplexityDetailed:
	default:
		return fmt.Errorf("%w: complexity %q", ErrValidation, p.Complexity)
	}
	switch p.LineThickness {
	case LineThin, LineMedium, LineThick:
	default:
		return fmt.Errorf("%w: line_thickness %q", ErrValidation, p.LineThickness)
	}
	if p.EditParentID == "" && p.SourceAssetID == "" && strings.TrimSpace(p.CustomPrompt) == "" {
		return fmt.Errorf("%w: a source asset or a text prompt is required", ErrValidation)
	}
	return nil
}

const (
	editPromptMinLen = 3
	editPromptMaxLen = 200
)

// editPromptDenylist is a coarse free-text filter applied to edit
// instructions. The list stays short and explicit.
var editPromptDenylist = []string{
	"nude",
	"naked",
	"nsfw",
	"gore",
	"blood",
	"weapon",
	"violence",
}

// ValidateEditPrompt enforces edit-instruction length bounds and the content
// denylist before any job row is created or any credit debited.
func ValidateEditPrompt(prompt string) error {
	trimmed := strings.TrimSpace(prompt)
	if n := utf8.RuneCountInString(trimmed); n < editPromptMinLen || n > editPromptMaxLen {
		return fmt.Errorf("%w: edit_prompt must be between %d and %d characters", ErrValidation, editPromptMinLen, editPromptMaxLen)
	}
	lowered := strings.ToLower(trimmed)
	for _, word := range editPromptDenylist {
		if strings.Contains(lowered, word) {
			return fmt.Errorf("%w: edit_prompt contains disallowed content", ErrValidation)
		}
	}
	return nil
}
