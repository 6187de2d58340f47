package brief

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var ErrMissingBrief = errors.New("missing brief payload")

// Brief is one completed intake questionnaire, submitted for
// materialization. It is treated as immutable for the duration of a run.
type Brief struct {
	ID       string    `json:"id"`
	Client   string    `json:"client"`
	Sections []Section `json:"sections"`
	AI       AIMeta    `json:"ai"`
}

type AIMeta struct {
	Summary string `json:"summary"`
}

type Section struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
}

type Question struct {
	ID     string `json:"id"`
	Number int    `json:"number"`
	Text   string `json:"text"`
	Type   string `json:"type"`

	// Answer is either a plain string or a structured value; structured
	// values are serialized back to compact JSON for task notes.
	Answer json.RawMessage `json:"answer"`
}

// AnswerString renders the answer for task notes: strings verbatim,
// everything else as compact JSON, absent/null answers as "".
func (q Question) AnswerString() string {
	raw := bytes.TrimSpace(q.Answer)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err == nil {
		return buf.String()
	}
	return string(raw)
}

// ClientName returns the client display name with the same fallback the
// intake UI shows for an anonymous brief.
func (b Brief) ClientName() string {
	if c := strings.TrimSpace(b.Client); c != "" {
		return c
	}
	return "Client"
}

// QuestionCount counts questions across all sections.
func (b Brief) QuestionCount() int {
	n := 0
	for _, sec := range b.Sections {
		n += len(sec.Questions)
	}
	return n
}

// Parse decodes a brief document from raw JSON. An absent or null
// document is ErrMissingBrief.
func Parse(data []byte) (Brief, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return Brief{}, ErrMissingBrief
	}
	var b Brief
	if err := json.Unmarshal(data, &b); err != nil {
		return Brief{}, fmt.Errorf("parse brief: %w", err)
	}
	return b, nil
}
