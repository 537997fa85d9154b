package bootstrap

import (
	"errors"
	"fmt"
	"strings"
)

// Limits applied before a setup request leaves the client.
const (
	MinJobDescriptionLen = 11
	MinCandidateNameLen  = 3
	MinDurationMinutes   = 3
	MaxDurationMinutes   = 60
	MaxQuestionCount     = 20
	DefaultDuration      = 5
)

// ValidationError names the offending setup field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

// IsValidation reports whether err came from Request.Validate.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// Request is the session setup form.
type Request struct {
	JobDescription  string
	CandidateName   string
	QuestionCount   int
	DurationMinutes int
}

// Validate enforces non-empty fields and range limits.
func (r Request) Validate() error {
	jd := strings.TrimSpace(r.JobDescription)
	if jd == "" {
		return &ValidationError{Field: "job_description", Message: "must not be empty"}
	}
	if len([]rune(jd)) < MinJobDescriptionLen {
		return &ValidationError{Field: "job_description", Message: fmt.Sprintf("must be at least %d characters", MinJobDescriptionLen)}
	}

	name := strings.TrimSpace(r.CandidateName)
	if name == "" {
		return &ValidationError{Field: "candidate_name", Message: "must not be empty"}
	}
	if len([]rune(name)) < MinCandidateNameLen {
		return &ValidationError{Field: "candidate_name", Message: fmt.Sprintf("must be at least %d characters", MinCandidateNameLen)}
	}

	if r.QuestionCount < 0 || r.QuestionCount > MaxQuestionCount {
		return &ValidationError{Field: "question_count", Message: fmt.Sprintf("must be between 1 and %d", MaxQuestionCount)}
	}
	if r.DurationMinutes != 0 && (r.DurationMinutes < MinDurationMinutes || r.DurationMinutes > MaxDurationMinutes) {
		return &ValidationError{Field: "duration_minutes", Message: fmt.Sprintf("must be between %d and %d", MinDurationMinutes, MaxDurationMinutes)}
	}
	if r.QuestionCount > 0 && r.DurationMinutes > 0 {
		return &ValidationError{Field: "question_count", Message: "and duration_minutes are mutually exclusive"}
	}
	return nil
}

type setupPayload struct {
	JobDescription  string `json:"job_description"`
	CandidateName   string `json:"candidate_name"`
	QuestionCount   int    `json:"question_count,omitempty"`
	DurationMinutes int    `json:"duration_minutes,omitempty"`
}

func (r Request) payload() setupPayload {
	p := setupPayload{
		JobDescription: strings.TrimSpace(r.JobDescription),
		CandidateName:  strings.TrimSpace(r.CandidateName),
		QuestionCount:  r.QuestionCount,
	}
	if r.QuestionCount == 0 {
		p.DurationMinutes = r.DurationMinutes
		if p.DurationMinutes == 0 {
			p.DurationMinutes = DefaultDuration
		}
	}
	return p
}
