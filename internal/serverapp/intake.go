package serverapp

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/trandlrparis/brief-tool/internal/brief"
	"github.com/trandlrparis/brief-tool/internal/materialize"
	"github.com/trandlrparis/brief-tool/internal/report"
)

type handler struct {
	svc     *materialize.Service
	reports report.Repo
	logger  *log.Logger
}

// CreateProjectResponse is the success payload for the intake endpoint.
type CreateProjectResponse struct {
	OK         bool   `json:"ok"`
	ProjectGID string `json:"projectGid"`
	ProjectURL string `json:"projectUrl"`
	RunID      string `json:"runId"`
	Degraded   int    `json:"degraded"`
}

// POST /api/asana/create-project
// Accepts JSON {brief, pdfUrl?, zipUrl?} or multipart form data with parts
// pdf/zip and fields brief/pdfUrl/zipUrl.
func (h *handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	in, err := decodeSubmission(r)
	if err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			writeErr(w, http.StatusRequestEntityTooLarge, "payload too large")
		case errors.Is(err, brief.ErrMissingBrief):
			writeErr(w, http.StatusBadRequest, "Missing brief payload")
		default:
			writeErr(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	out, err := h.svc.Run(r.Context(), in)
	if err != nil {
		// Resolution failures are the only fatal path; everything after
		// a resolved project degrades instead.
		writeErr(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, CreateProjectResponse{
		OK:         true,
		ProjectGID: out.ProjectGID,
		ProjectURL: out.ProjectURL,
		RunID:      out.Report.RunID,
		Degraded:   out.Report.Degraded,
	})
}

type submitPayload struct {
	Brief  json.RawMessage `json:"brief"`
	PDFURL string          `json:"pdfUrl"`
	ZIPURL string          `json:"zipUrl"`
}

func decodeSubmission(r *http.Request) (materialize.Input, error) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/") {
		return decodeMultipart(r)
	}

	var payload submitPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		if errors.Is(err, io.EOF) {
			return materialize.Input{}, brief.ErrMissingBrief
		}
		return materialize.Input{}, err
	}

	b, err := brief.Parse(payload.Brief)
	if err != nil {
		return materialize.Input{}, err
	}

	in := materialize.Input{Brief: b}
	if payload.PDFURL != "" {
		in.PDF = &materialize.Artifact{URL: payload.PDFURL}
	}
	if payload.ZIPURL != "" {
		in.ZIP = &materialize.Artifact{URL: payload.ZIPURL}
	}
	return in, nil
}

func decodeMultipart(r *http.Request) (materialize.Input, error) {
	if err := r.ParseMultipartForm(maxBriefBytes); err != nil {
		return materialize.Input{}, err
	}

	b, err := brief.Parse([]byte(r.FormValue("brief")))
	if err != nil {
		return materialize.Input{}, err
	}

	in := materialize.Input{Brief: b}

	if pdf, err := formArtifact(r, "pdf"); err != nil {
		return materialize.Input{}, err
	} else if pdf != nil {
		in.PDF = pdf
	} else if u := r.FormValue("pdfUrl"); u != "" {
		in.PDF = &materialize.Artifact{URL: u}
	}

	if zip, err := formArtifact(r, "zip"); err != nil {
		return materialize.Input{}, err
	} else if zip != nil {
		in.ZIP = zip
	} else if u := r.FormValue("zipUrl"); u != "" {
		in.ZIP = &materialize.Artifact{URL: u}
	}

	return in, nil
}

func formArtifact(r *http.Request, field string) (*materialize.Artifact, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	return &materialize.Artifact{
		Data:        data,
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
	}, nil
}

// GET /api/runs
func (h *handler) Runs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	runs, err := h.reports.List()
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// GET /api/runs/{id}
func (h *handler) RunByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	runID := strings.TrimPrefix(r.URL.Path, "/api/runs/")
	if runID == "" || strings.Contains(runID, "/") {
		writeErr(w, http.StatusNotFound, "run not found")
		return
	}
	rep, ok, err := h.reports.Get(runID)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		writeErr(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, rep)
}
