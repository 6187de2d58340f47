package materialize

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trandlrparis/brief-tool/internal/asana"
	"github.com/trandlrparis/brief-tool/internal/brief"
	"github.com/trandlrparis/brief-tool/internal/report"
)

type taskCall struct {
	ProjectGID string
	SectionGID string
	Name       string
	Notes      string
	DueOn      string
	GID        string
}

type attachCall struct {
	TaskGID     string
	Filename    string
	ContentType string
	Data        []byte
}

type fakeAPI struct {
	mu      sync.Mutex
	nextGID int

	workspaces []asana.Workspace

	failDuplicate   bool
	failSections    map[string]bool
	failTasks       map[string]bool
	failSummaryTask bool
	failAttach      bool

	listWorkspacesCalls int
	duplicateCalls      int
	createProjectCalls  int
	sectionCalls        []string
	taskCalls           []taskCall
	updateNotesCalls    int
	attachCalls         []attachCall
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		workspaces: []asana.Workspace{{GID: "ws1", Name: "Main"}},
	}
}

func (f *fakeAPI) gid(prefix string) string {
	f.nextGID++
	return fmt.Sprintf("%s-%d", prefix, f.nextGID)
}

func (f *fakeAPI) ListWorkspaces(ctx context.Context) ([]asana.Workspace, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listWorkspacesCalls++
	return f.workspaces, nil
}

func (f *fakeAPI) DuplicateProject(ctx context.Context, templateGID, name string) (*asana.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.duplicateCalls++
	if f.failDuplicate {
		return nil, &asana.APIError{Status: 403, Message: "template not accessible"}
	}
	return &asana.Project{GID: f.gid("dup"), Name: name}, nil
}

func (f *fakeAPI) CreateProject(ctx context.Context, name, workspaceGID string) (*asana.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createProjectCalls++
	return &asana.Project{GID: f.gid("proj"), Name: name}, nil
}

func (f *fakeAPI) CreateSection(ctx context.Context, projectGID, name string) (*asana.Section, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sectionCalls = append(f.sectionCalls, name)
	if f.failSections[name] {
		return nil, &asana.APIError{Status: 500, Message: "section boom"}
	}
	return &asana.Section{GID: f.gid("sec"), Name: name}, nil
}

func (f *fakeAPI) CreateTask(ctx context.Context, projectGID, sectionGID, name, notes, dueOn string) (*asana.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	call := taskCall{ProjectGID: projectGID, SectionGID: sectionGID, Name: name, Notes: notes, DueOn: dueOn}
	if f.failTasks[name] || (f.failSummaryTask && strings.HasPrefix(name, "Executive Summary")) {
		f.taskCalls = append(f.taskCalls, call)
		return nil, &asana.APIError{Status: 500, Message: "task boom"}
	}
	call.GID = f.gid("task")
	f.taskCalls = append(f.taskCalls, call)
	return &asana.Task{GID: call.GID, Name: name, DueOn: dueOn}, nil
}

func (f *fakeAPI) UpdateTaskNotes(ctx context.Context, taskGID, notes string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateNotesCalls++
	return nil
}

func (f *fakeAPI) AttachFile(ctx context.Context, taskGID string, data []byte, filename, contentType string) (*asana.Attachment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAttach {
		return nil, &asana.APIError{Status: 500, Message: "attach boom"}
	}
	f.attachCalls = append(f.attachCalls, attachCall{TaskGID: taskGID, Filename: filename, ContentType: contentType, Data: data})
	return &asana.Attachment{GID: f.gid("att"), Name: filename}, nil
}

func (f *fakeAPI) taskByName(name string) (taskCall, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.taskCalls {
		if c.Name == name {
			return c, true
		}
	}
	return taskCall{}, false
}

func (f *fakeAPI) questionTaskCalls() []taskCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]taskCall, 0, len(f.taskCalls))
	for _, c := range f.taskCalls {
		if !strings.HasPrefix(c.Name, "Executive Summary") {
			out = append(out, c)
		}
	}
	return out
}

func testService(t *testing.T, api RemoteAPI, mutate func(*Options)) (*Service, *report.MemoryRepo) {
	t.Helper()
	reports := report.NewMemoryRepo()
	opts := Options{
		API:     api,
		Reports: reports,
		Logger:  log.New(io.Discard, "", 0),
		Now: func() time.Time {
			return time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
		},
	}
	if mutate != nil {
		mutate(&opts)
	}
	return NewService(opts), reports
}

func twoSectionBrief() brief.Brief {
	return brief.Brief{
		ID:     "b-1",
		Client: "Acme",
		Sections: []brief.Section{
			{ID: "s1", Title: "Shipping", Questions: []brief.Question{
				{ID: "q5", Number: 5, Text: "When do we ship?", Type: "date", Answer: json.RawMessage(`"2024-03-01"`)},
			}},
			{ID: "s2", Title: "Notes", Questions: []brief.Question{
				{ID: "q6", Number: 6, Text: "Anything else?", Type: "text", Answer: json.RawMessage(`"hello"`)},
			}},
		},
		AI: brief.AIMeta{Summary: "ship in march"},
	}
}

func TestRun_EndToEnd(t *testing.T) {
	api := newFakeAPI()
	svc, reports := testService(t, api, nil)

	out, err := svc.Run(context.Background(), Input{Brief: twoSectionBrief()})
	require.NoError(t, err)

	assert.Equal(t, 1, api.listWorkspacesCalls)
	assert.Equal(t, 0, api.duplicateCalls)
	assert.Equal(t, 1, api.createProjectCalls)
	assert.Equal(t, []string{"Shipping", "Notes"}, api.sectionCalls)
	assert.Len(t, api.taskCalls, 3) // 2 questions + 1 summary

	q5, ok := api.taskByName("Q000005: When do we ship?")
	require.True(t, ok)
	assert.Equal(t, "2024-03-01", q5.DueOn)
	assert.NotEmpty(t, q5.SectionGID)
	assert.Equal(t, "2024-03-01\n\nDeep link: app://brief/b-1#q5", q5.Notes)

	q6, ok := api.taskByName("Q000006: Anything else?")
	require.True(t, ok)
	assert.Empty(t, q6.DueOn)

	summary, ok := api.taskByName("Executive Summary (AI) — Acme")
	require.True(t, ok)
	assert.Empty(t, summary.SectionGID)
	assert.Equal(t, "ship in march", summary.Notes)
	assert.Equal(t, 1, api.updateNotesCalls)

	assert.NotEmpty(t, out.ProjectGID)
	assert.Equal(t, "https://app.asana.com/0/"+out.ProjectGID, out.ProjectURL)
	assert.Equal(t, 0, out.Report.Degraded)
	assert.Len(t, out.Report.Items, 5) // 2 sections + 2 tasks + 1 summary, no attachments

	saved, ok, err := reports.Get(out.Report.RunID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, out.ProjectGID, saved.ProjectGID)
}

func TestRun_TemplateSuccess_NoWorkspaceLookup(t *testing.T) {
	api := newFakeAPI()
	svc, _ := testService(t, api, func(o *Options) { o.TemplateID = "tmpl1" })

	out, err := svc.Run(context.Background(), Input{Brief: twoSectionBrief()})
	require.NoError(t, err)

	assert.Equal(t, 1, api.duplicateCalls)
	assert.Equal(t, 0, api.listWorkspacesCalls)
	assert.Equal(t, 0, api.createProjectCalls)
	assert.True(t, strings.HasPrefix(out.ProjectGID, "dup-"))
}

func TestRun_TemplateFailure_FallsBackToBareCreation(t *testing.T) {
	api := newFakeAPI()
	api.failDuplicate = true
	svc, _ := testService(t, api, func(o *Options) { o.TemplateID = "tmpl1" })

	out, err := svc.Run(context.Background(), Input{Brief: twoSectionBrief()})
	require.NoError(t, err)

	assert.Equal(t, 1, api.duplicateCalls)
	assert.Equal(t, 1, api.listWorkspacesCalls)
	assert.Equal(t, 1, api.createProjectCalls)
	assert.True(t, strings.HasPrefix(out.ProjectGID, "proj-"))
}

func TestRun_NoWorkspace_Fatal(t *testing.T) {
	api := newFakeAPI()
	api.workspaces = nil
	svc, _ := testService(t, api, nil)

	_, err := svc.Run(context.Background(), Input{Brief: twoSectionBrief()})
	assert.ErrorIs(t, err, ErrNoWorkspace)
}

func TestRun_SectionFailure_TasksUnbound(t *testing.T) {
	api := newFakeAPI()
	api.failSections = map[string]bool{"Shipping": true}
	svc, _ := testService(t, api, nil)

	out, err := svc.Run(context.Background(), Input{Brief: twoSectionBrief()})
	require.NoError(t, err)

	// Both sections were attempted, both question tasks still created.
	assert.Len(t, api.sectionCalls, 2)
	q5, ok := api.taskByName("Q000005: When do we ship?")
	require.True(t, ok)
	assert.Empty(t, q5.SectionGID, "task for failed section must have no section binding")
	q6, ok := api.taskByName("Q000006: Anything else?")
	require.True(t, ok)
	assert.NotEmpty(t, q6.SectionGID)

	assert.Equal(t, 1, out.Report.Degraded)
}

func TestRun_TaskFailuresAreIndependent(t *testing.T) {
	api := newFakeAPI()
	api.failTasks = map[string]bool{"Q000005: When do we ship?": true}
	svc, _ := testService(t, api, nil)

	out, err := svc.Run(context.Background(), Input{Brief: twoSectionBrief()})
	require.NoError(t, err)

	// All question tasks attempted despite the failure, plus the summary.
	assert.Len(t, api.taskCalls, 3)
	assert.Equal(t, 1, out.Report.Degraded)

	var failed, succeeded int
	for _, item := range out.Report.Items {
		if item.Kind != report.ItemTask {
			continue
		}
		if item.Failed() {
			failed++
		} else {
			succeeded++
		}
	}
	assert.Equal(t, 1, failed)
	assert.Equal(t, 1, succeeded)
}

func TestRun_EmptyBrief_SkipsAttachments(t *testing.T) {
	api := newFakeAPI()
	svc, _ := testService(t, api, nil)

	out, err := svc.Run(context.Background(), Input{
		Brief: brief.Brief{ID: "b-2", Client: "Acme"},
		PDF:   &Artifact{Data: []byte("%PDF-fake")},
	})
	require.NoError(t, err)

	assert.Empty(t, api.attachCalls)
	assert.NotEmpty(t, out.ProjectGID)
	// Summary task is still created for an empty brief.
	assert.Len(t, api.taskCalls, 1)
}

func TestRun_AttachmentsBindToFirstTask(t *testing.T) {
	api := newFakeAPI()
	svc, _ := testService(t, api, nil)

	out, err := svc.Run(context.Background(), Input{
		Brief: twoSectionBrief(),
		PDF:   &Artifact{Data: []byte("%PDF-fake"), Filename: "brief.pdf", ContentType: "application/pdf"},
		ZIP:   &Artifact{Data: []byte("PK-fake")},
	})
	require.NoError(t, err)

	q5, ok := api.taskByName("Q000005: When do we ship?")
	require.True(t, ok)

	require.Len(t, api.attachCalls, 2)
	assert.Equal(t, q5.GID, api.attachCalls[0].TaskGID)
	assert.Equal(t, q5.GID, api.attachCalls[1].TaskGID)
	assert.Equal(t, "brief.pdf", api.attachCalls[0].Filename)
	assert.Equal(t, "Project_Brief.zip", api.attachCalls[1].Filename)
	assert.Equal(t, "application/zip", api.attachCalls[1].ContentType)
	assert.Equal(t, 0, out.Report.Degraded)
}

func TestRun_AttachmentFromURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-remote"))
	}))
	defer srv.Close()

	api := newFakeAPI()
	svc, _ := testService(t, api, nil)

	out, err := svc.Run(context.Background(), Input{
		Brief: twoSectionBrief(),
		PDF:   &Artifact{URL: srv.URL + "/brief.pdf"},
	})
	require.NoError(t, err)

	require.Len(t, api.attachCalls, 1)
	assert.Equal(t, []byte("%PDF-remote"), api.attachCalls[0].Data)
	assert.Equal(t, "Project_Brief.pdf", api.attachCalls[0].Filename)
	assert.Equal(t, "application/pdf", api.attachCalls[0].ContentType)
	assert.Equal(t, 0, out.Report.Degraded)
}

func TestRun_AttachmentFetchFailure_Degrades(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	api := newFakeAPI()
	svc, _ := testService(t, api, nil)

	out, err := svc.Run(context.Background(), Input{
		Brief: twoSectionBrief(),
		PDF:   &Artifact{URL: srv.URL + "/gone.pdf"},
	})
	require.NoError(t, err)

	assert.Empty(t, api.attachCalls)
	assert.Equal(t, 1, out.Report.Degraded)
}

func TestRun_SummaryFailure_StillOK(t *testing.T) {
	api := newFakeAPI()
	api.failSummaryTask = true
	svc, _ := testService(t, api, nil)

	out, err := svc.Run(context.Background(), Input{Brief: twoSectionBrief()})
	require.NoError(t, err)

	assert.NotEmpty(t, out.ProjectGID)
	assert.Equal(t, 1, out.Report.Degraded)
	assert.Len(t, api.questionTaskCalls(), 2)
}

func TestRun_NoDedupAcrossRuns(t *testing.T) {
	api := newFakeAPI()
	svc, _ := testService(t, api, nil)

	first, err := svc.Run(context.Background(), Input{Brief: twoSectionBrief()})
	require.NoError(t, err)
	second, err := svc.Run(context.Background(), Input{Brief: twoSectionBrief()})
	require.NoError(t, err)

	// Same brief, two runs, two distinct projects: no dedup key exists.
	assert.NotEqual(t, first.ProjectGID, second.ProjectGID)
	assert.Equal(t, 2, api.createProjectCalls)
	assert.NotEqual(t, first.Report.RunID, second.Report.RunID)
}

func TestRun_ManyQuestions_AllAttempted(t *testing.T) {
	b := brief.Brief{ID: "b-big", Client: "Acme"}
	const perSection = 15
	for s := 0; s < 4; s++ {
		sec := brief.Section{ID: fmt.Sprintf("s%d", s), Title: fmt.Sprintf("Section %d", s)}
		for q := 0; q < perSection; q++ {
			n := s*perSection + q + 1
			sec.Questions = append(sec.Questions, brief.Question{
				ID:     fmt.Sprintf("q%d", n),
				Number: n,
				Text:   fmt.Sprintf("Question %d?", n),
				Type:   "text",
				Answer: json.RawMessage(`"answer"`),
			})
		}
		b.Sections = append(b.Sections, sec)
	}

	api := newFakeAPI()
	svc, _ := testService(t, api, func(o *Options) { o.TaskFanout = 3 })

	out, err := svc.Run(context.Background(), Input{Brief: b})
	require.NoError(t, err)

	assert.Len(t, api.sectionCalls, 4)
	assert.Len(t, api.questionTaskCalls(), 4*perSection)
	assert.Equal(t, 0, out.Report.Degraded)
}
