package materialize

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/trandlrparis/brief-tool/internal/asana"
	"github.com/trandlrparis/brief-tool/internal/brief"
	"github.com/trandlrparis/brief-tool/internal/report"
)

// createSections mirrors the brief's sections into the project, in
// declared order, and returns the section-id → remote-gid mapping for this
// run. A failed section leaves its id unmapped; its tasks are later
// created with no section binding.
func (s *Service) createSections(ctx context.Context, projectGID string, b brief.Brief, rep *report.Report) map[string]string {
	gids := make(map[string]string, len(b.Sections))
	for _, sec := range b.Sections {
		created, err := s.api.CreateSection(ctx, projectGID, sec.Title)
		if err != nil {
			s.logDegraded(report.ItemSection, sec.Title, err)
			rep.Add(report.Item{Kind: report.ItemSection, Ref: sec.Title, Error: err.Error()})
			continue
		}
		gids[sec.ID] = created.GID
		rep.Add(report.Item{Kind: report.ItemSection, Ref: sec.Title, GID: created.GID})
	}
	return gids
}

type taskSpec struct {
	name       string
	notes      string
	dueOn      string
	sectionGID string
}

// createTasks fans out one task-creation call per question, bounded by the
// configured worker limit. Failures are independent: a failed task never
// cancels or blocks its siblings. The returned slice holds the successful
// tasks in section-then-question order; its first entry is the anchor for
// attachments.
func (s *Service) createTasks(ctx context.Context, projectGID string, b brief.Brief, sectionGIDs map[string]string, rep *report.Report) []*asana.Task {
	specs := make([]taskSpec, 0, b.QuestionCount())
	for _, sec := range b.Sections {
		sectionGID := sectionGIDs[sec.ID]
		for _, q := range sec.Questions {
			dueOn, _ := brief.DueDate(q)
			specs = append(specs, taskSpec{
				name:       brief.TaskName(q),
				notes:      brief.TaskNotes(q, b.ID, s.deepLinkBase),
				dueOn:      dueOn,
				sectionGID: sectionGID,
			})
		}
	}

	results := make([]*asana.Task, len(specs))
	failures := make([]error, len(specs))

	var g errgroup.Group
	g.SetLimit(s.fanout)
	for i, spec := range specs {
		i, spec := i, spec
		g.Go(func() error {
			task, err := s.api.CreateTask(ctx, projectGID, spec.sectionGID, spec.name, spec.notes, spec.dueOn)
			results[i], failures[i] = task, err
			return nil
		})
	}
	_ = g.Wait()

	created := make([]*asana.Task, 0, len(specs))
	for i, spec := range specs {
		if failures[i] != nil {
			s.logDegraded(report.ItemTask, spec.name, failures[i])
			rep.Add(report.Item{Kind: report.ItemTask, Ref: spec.name, Error: failures[i].Error()})
			continue
		}
		rep.Add(report.Item{Kind: report.ItemTask, Ref: spec.name, GID: results[i].GID})
		created = append(created, results[i])
	}
	return created
}
