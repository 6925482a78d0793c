package model

import (
	"fmt"
	"net/url"
)

// TaskRequest is the body of a task submission. The task field doubles as the
// name of the backing repository and must be stable across rounds of the same
// project.
type TaskRequest struct {
	Email         string       `json:"email"`
	Secret        string       `json:"secret"`
	Task          string       `json:"task"`
	Round         int          `json:"round"`
	Nonce         string       `json:"nonce"`
	Brief         string       `json:"brief"`
	Checks        []string     `json:"checks"`
	EvaluationURL string       `json:"evaluation_url"`
	Attachments   []Attachment `json:"attachments,omitempty"`
}

// Attachment carries inline file content as a data URI: <header>,<base64 payload>
type Attachment struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

func (r TaskRequest) Validate() error {
	if r.Task == "" {
		return fmt.Errorf("task is not given")
	}
	if r.Round < 1 {
		return fmt.Errorf("round must be a positive integer: %d", r.Round)
	}
	if r.Brief == "" {
		return fmt.Errorf("brief is not given")
	}
	if _, err := url.ParseRequestURI(r.EvaluationURL); err != nil {
		return fmt.Errorf("error parsing evaluation_url: %s", err)
	}
	return nil
}
