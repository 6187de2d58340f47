package serverapp

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"path/filepath"
	"time"

	"github.com/trandlrparis/brief-tool/internal/asana"
	"github.com/trandlrparis/brief-tool/internal/config"
	"github.com/trandlrparis/brief-tool/internal/httpmw"
	"github.com/trandlrparis/brief-tool/internal/materialize"
	"github.com/trandlrparis/brief-tool/internal/report"
)

// maxBriefBytes is the inbound payload ceiling for one submission.
const maxBriefBytes = 10 << 20

type Options struct {
	Config *config.Config
	Logger *log.Logger

	// API overrides the tracker client, for tests. Defaults to a real
	// client built from Config.Asana.
	API materialize.RemoteAPI

	// Reports overrides the run-report store. Defaults to a file repo
	// under <DataDir>/runs.
	Reports report.Repo
}

func NewHandler(opts Options) (http.Handler, error) {
	if opts.Config == nil {
		return nil, errors.New("config is required")
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	reports := opts.Reports
	if reports == nil {
		fileRepo, err := report.NewFileRepo(filepath.Join(opts.Config.DataDir, "runs"))
		if err != nil {
			return nil, err
		}
		reports = fileRepo
	}

	api := opts.API
	if api == nil {
		api = asana.NewClient(opts.Config.Asana.BaseURL, opts.Config.Asana.Token)
	}

	svc := materialize.NewService(materialize.Options{
		API:            api,
		Reports:        reports,
		Logger:         opts.Logger,
		TemplateID:     opts.Config.Asana.TemplateID,
		DeepLinkBase:   opts.Config.DeepLinkBase,
		ProjectURLBase: opts.Config.Asana.ProjectURLBase,
		TaskFanout:     opts.Config.TaskFanout,
	})

	h := &handler{svc: svc, reports: reports, logger: opts.Logger}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/asana/create-project", h.CreateProject)
	mux.HandleFunc("/api/runs", h.Runs)
	mux.HandleFunc("/api/runs/", h.RunByID)

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":      true,
			"service": "brief-tool",
			"time":    time.Now().UTC().Format(time.RFC3339),
		})
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if _, err := reports.List(); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"ok":    false,
				"error": "run report storage unavailable",
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":      true,
			"service": "brief-tool",
			"time":    time.Now().UTC().Format(time.RFC3339),
		})
	})

	return httpmw.Chain(
		mux,
		httpmw.WithAccessLog(opts.Logger),
		httpmw.WithRequestID,
		httpmw.WithRecover(opts.Logger),
		httpmw.WithMaxBytes(maxBriefBytes),
	), nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"error": msg})
}
