package materialize

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/trandlrparis/brief-tool/internal/asana"
	"github.com/trandlrparis/brief-tool/internal/brief"
	"github.com/trandlrparis/brief-tool/internal/report"
)

// Artifact is one binary input, either raw bytes or a URL to fetch.
type Artifact struct {
	Data        []byte
	URL         string
	Filename    string
	ContentType string
}

// Input is one submission: a parsed brief plus optional PDF/ZIP artifacts.
type Input struct {
	Brief brief.Brief
	PDF   *Artifact
	ZIP   *Artifact
}

// Outcome is what the caller gets back on success.
type Outcome struct {
	ProjectGID string
	ProjectURL string
	Report     *report.Report
}

// Run performs one materialization pass: resolve a destination project,
// mirror sections and questions into it, add the summary task, attach
// artifacts. Per-item failures degrade the run and land in the report;
// only project resolution can fail the run as a whole.
func (s *Service) Run(ctx context.Context, in Input) (*Outcome, error) {
	rep := &report.Report{
		RunID:     uuid.NewString(),
		BriefID:   in.Brief.ID,
		Client:    in.Brief.ClientName(),
		StartedAt: s.now(),
	}

	project, err := s.resolveProject(ctx, in.Brief)
	if err != nil {
		return nil, err
	}
	rep.ProjectGID = project.GID
	rep.ProjectURL = s.projectURLBase + "/" + project.GID

	sectionGIDs := s.createSections(ctx, project.GID, in.Brief, rep)
	tasks := s.createTasks(ctx, project.GID, in.Brief, sectionGIDs, rep)
	s.createSummaryTask(ctx, project.GID, in.Brief, rep)

	var anchor *asana.Task
	if len(tasks) > 0 {
		anchor = tasks[0]
	}
	s.attachArtifacts(ctx, anchor, in, rep)

	rep.FinishedAt = s.now()
	if err := s.reports.Save(rep); err != nil {
		s.logEvent("error", "report_save_failed", map[string]any{
			"run_id": rep.RunID,
			"error":  err.Error(),
		})
	}

	s.logEvent("info", "materialize_done", map[string]any{
		"run_id":      rep.RunID,
		"brief_id":    rep.BriefID,
		"project_gid": rep.ProjectGID,
		"items":       len(rep.Items),
		"degraded":    rep.Degraded,
	})

	return &Outcome{
		ProjectGID: project.GID,
		ProjectURL: rep.ProjectURL,
		Report:     rep,
	}, nil
}

// resolveProject duplicates the configured template when one is set,
// falling back to bare creation in the first workspace. Duplication
// failure degrades; an empty workspace list is fatal because there is no
// valid target.
func (s *Service) resolveProject(ctx context.Context, b brief.Brief) (*asana.Project, error) {
	name := brief.ProjectName(b.ClientName(), s.now())

	if s.templateID != "" {
		project, err := s.api.DuplicateProject(ctx, s.templateID, name)
		if err == nil {
			return project, nil
		}
		s.logEvent("warn", "template_duplicate_failed", map[string]any{
			"template_id": s.templateID,
			"error":       err.Error(),
		})
	}

	workspaces, err := s.api.ListWorkspaces(ctx)
	if err != nil {
		return nil, fmt.Errorf("list workspaces: %w", err)
	}
	if len(workspaces) == 0 {
		return nil, ErrNoWorkspace
	}
	project, err := s.api.CreateProject(ctx, name, workspaces[0].GID)
	if err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	return project, nil
}

func (s *Service) createSummaryTask(ctx context.Context, projectGID string, b brief.Brief, rep *report.Report) {
	name := fmt.Sprintf("Executive Summary (AI) — %s", b.ClientName())
	task, err := s.api.CreateTask(ctx, projectGID, "", name, b.AI.Summary, "")
	if err != nil {
		s.logDegraded(report.ItemSummary, name, err)
		rep.Add(report.Item{Kind: report.ItemSummary, Ref: name, Error: err.Error()})
		return
	}
	item := report.Item{Kind: report.ItemSummary, Ref: name, GID: task.GID}
	if err := s.api.UpdateTaskNotes(ctx, task.GID, b.AI.Summary); err != nil {
		s.logDegraded(report.ItemSummary, name, err)
		item.Error = err.Error()
	}
	rep.Add(item)
}
