package materialize

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/trandlrparis/brief-tool/internal/asana"
	"github.com/trandlrparis/brief-tool/internal/report"
)

var ErrNoWorkspace = errors.New("no workspace available for project creation")

// RemoteAPI is the remote-tracker surface the pipeline needs. The real
// implementation is *asana.Client.
type RemoteAPI interface {
	ListWorkspaces(ctx context.Context) ([]asana.Workspace, error)
	DuplicateProject(ctx context.Context, templateGID, name string) (*asana.Project, error)
	CreateProject(ctx context.Context, name, workspaceGID string) (*asana.Project, error)
	CreateSection(ctx context.Context, projectGID, name string) (*asana.Section, error)
	CreateTask(ctx context.Context, projectGID, sectionGID, name, notes, dueOn string) (*asana.Task, error)
	UpdateTaskNotes(ctx context.Context, taskGID, notes string) error
	AttachFile(ctx context.Context, taskGID string, data []byte, filename, contentType string) (*asana.Attachment, error)
}

// Service runs one forward materialization pass per submitted brief. Runs
// share no mutable state; each constructs its own section mapping and
// report.
type Service struct {
	api     RemoteAPI
	reports report.Repo
	logger  *log.Logger

	templateID     string
	deepLinkBase   string
	projectURLBase string
	fanout         int

	fetch *http.Client
	now   func() time.Time
}

type Options struct {
	API     RemoteAPI
	Reports report.Repo
	Logger  *log.Logger

	TemplateID     string
	DeepLinkBase   string
	ProjectURLBase string

	// TaskFanout bounds concurrent task-creation calls.
	TaskFanout int

	// Fetch downloads pdfUrl/zipUrl artifacts. Defaults to a client with
	// the same 20s timeout the tracker client uses.
	Fetch *http.Client

	Now func() time.Time
}

func NewService(opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Reports == nil {
		opts.Reports = report.NewMemoryRepo()
	}
	if opts.DeepLinkBase == "" {
		opts.DeepLinkBase = "app://brief"
	}
	if opts.ProjectURLBase == "" {
		opts.ProjectURLBase = "https://app.asana.com/0"
	}
	if opts.TaskFanout <= 0 {
		opts.TaskFanout = 8
	}
	if opts.Fetch == nil {
		opts.Fetch = &http.Client{Timeout: 20 * time.Second}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		api:            opts.API,
		reports:        opts.Reports,
		logger:         opts.Logger,
		templateID:     opts.TemplateID,
		deepLinkBase:   opts.DeepLinkBase,
		projectURLBase: opts.ProjectURLBase,
		fanout:         opts.TaskFanout,
		fetch:          opts.Fetch,
		now:            opts.Now,
	}
}

func (s *Service) logEvent(level, msg string, fields map[string]any) {
	payload := map[string]any{
		"ts":    time.Now().UTC().Format(time.RFC3339Nano),
		"level": level,
		"msg":   msg,
	}
	for k, v := range fields {
		payload[k] = v
	}
	b, err := json.Marshal(payload)
	if err != nil {
		s.logger.Printf(`{"level":"error","msg":"log_marshal_failed","error":%q}`, err.Error())
		return
	}
	s.logger.Print(string(b))
}

func (s *Service) logDegraded(kind report.ItemKind, ref string, err error) {
	s.logEvent("warn", "materialize_degraded", map[string]any{
		"kind":  string(kind),
		"ref":   ref,
		"error": err.Error(),
	})
}
