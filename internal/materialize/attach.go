package materialize

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/trandlrparis/brief-tool/internal/asana"
	"github.com/trandlrparis/brief-tool/internal/report"
)

// attachArtifacts binds the provided artifacts to the anchor task: the
// first question task created this run. With no anchor (empty brief or
// every task failed) attachments are skipped outright.
func (s *Service) attachArtifacts(ctx context.Context, anchor *asana.Task, in Input, rep *report.Report) {
	if anchor == nil {
		if in.PDF != nil || in.ZIP != nil {
			s.logEvent("warn", "attachments_skipped", map[string]any{
				"reason": "no tasks created",
			})
		}
		return
	}
	s.attachOne(ctx, anchor.GID, in.PDF, "Project_Brief.pdf", "application/pdf", rep)
	s.attachOne(ctx, anchor.GID, in.ZIP, "Project_Brief.zip", "application/zip", rep)
}

func (s *Service) attachOne(ctx context.Context, taskGID string, a *Artifact, defaultName, defaultType string, rep *report.Report) {
	if a == nil {
		return
	}

	data := a.Data
	filename := a.Filename
	contentType := a.ContentType
	if filename == "" {
		filename = defaultName
	}

	if data == nil {
		if a.URL == "" {
			return
		}
		fetched, fetchedType, err := s.fetchArtifact(ctx, a.URL)
		if err != nil {
			s.logDegraded(report.ItemAttachment, filename, err)
			rep.Add(report.Item{Kind: report.ItemAttachment, Ref: filename, Error: err.Error()})
			return
		}
		data = fetched
		if contentType == "" {
			contentType = fetchedType
		}
	}
	if contentType == "" {
		contentType = defaultType
	}

	att, err := s.api.AttachFile(ctx, taskGID, data, filename, contentType)
	if err != nil {
		s.logDegraded(report.ItemAttachment, filename, err)
		rep.Add(report.Item{Kind: report.ItemAttachment, Ref: filename, Error: err.Error()})
		return
	}
	rep.Add(report.Item{Kind: report.ItemAttachment, Ref: filename, GID: att.GID})
}

func (s *Service) fetchArtifact(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := s.fetch.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	return data, resp.Header.Get("Content-Type"), nil
}
