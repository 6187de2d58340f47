package brief

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// TaskName builds the remote task title for a question: the stable ordinal
// zero-padded to six digits, then the prompt text.
func TaskName(q Question) string {
	return fmt.Sprintf("Q%06d: %s", q.Number, q.Text)
}

// TaskNotes builds the notes body: the stringified answer followed by a
// deep link back into the intake app.
func TaskNotes(q Question, briefID, deepLinkBase string) string {
	return fmt.Sprintf("%s\n\nDeep link: %s/%s#q%d", q.AnswerString(), deepLinkBase, briefID, q.Number)
}

// dueHint matches prompts that look date-related. A question typed "text"
// whose prompt happens to contain "due" is still date-interpreted; that
// heuristic is intentional and covered by tests.
var dueHint = regexp.MustCompile(`(?i)date|due`)

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006/01/02",
	"01/02/2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

// DueDate applies the due-date heuristic: a question qualifies when its
// type is "date" or its prompt matches dueHint, and its answer parses as a
// date. Returns the date formatted as YYYY-MM-DD and whether it applied.
func DueDate(q Question) (string, bool) {
	if q.Type != "date" && !dueHint.MatchString(q.Text) {
		return "", false
	}
	raw := strings.TrimSpace(q.AnswerString())
	if raw == "" {
		return "", false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("2006-01-02"), true
		}
	}
	return "", false
}

// ProjectName derives the remote project title from the client name and
// the submission date.
func ProjectName(client string, now time.Time) string {
	return fmt.Sprintf("%s — Project Brief — %s", client, now.UTC().Format("2006-01-02"))
}
