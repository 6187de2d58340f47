package report

import "time"

type ItemKind string

const (
	ItemSection    ItemKind = "section"
	ItemTask       ItemKind = "task"
	ItemSummary    ItemKind = "summary_task"
	ItemAttachment ItemKind = "attachment"
)

// Item is the per-item outcome of one materialization step: a section, a
// question task, the summary task or an attachment.
type Item struct {
	Kind  ItemKind `json:"kind"`
	Ref   string   `json:"ref"`
	GID   string   `json:"gid,omitempty"`
	Error string   `json:"error,omitempty"`
}

func (i Item) Failed() bool { return i.Error != "" }

// Report is the structured record of one materialization run. Degraded
// items are recorded here instead of vanishing into log output.
type Report struct {
	RunID      string    `json:"runId"`
	BriefID    string    `json:"briefId"`
	Client     string    `json:"client"`
	ProjectGID string    `json:"projectGid"`
	ProjectURL string    `json:"projectUrl"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Items      []Item    `json:"items"`
	Degraded   int       `json:"degraded"`
}

// Add records one item outcome and keeps the degraded counter current.
func (r *Report) Add(item Item) {
	r.Items = append(r.Items, item)
	if item.Failed() {
		r.Degraded++
	}
}

// Repo stores run reports.
type Repo interface {
	Save(rep *Report) error
	Get(runID string) (*Report, bool, error)
	List() ([]*Report, error)
}
