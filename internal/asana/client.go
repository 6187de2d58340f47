package asana

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"
)

const requestTimeout = 20 * time.Second

// Client is a thin authenticated wrapper over the remote tracker's REST
// API. It does not retry; retry policy belongs to callers.
type Client struct {
	baseURL string
	token   string
	hc      *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		hc:      &http.Client{Timeout: requestTimeout},
	}
}

type Workspace struct {
	GID  string `json:"gid"`
	Name string `json:"name"`
}

type Project struct {
	GID  string `json:"gid"`
	Name string `json:"name"`
}

type Section struct {
	GID  string `json:"gid"`
	Name string `json:"name"`
}

type Task struct {
	GID   string `json:"gid"`
	Name  string `json:"name"`
	DueOn string `json:"due_on,omitempty"`
}

type Attachment struct {
	GID  string `json:"gid"`
	Name string `json:"name"`
}

func (c *Client) ListWorkspaces(ctx context.Context) ([]Workspace, error) {
	var out []Workspace
	if err := c.do(ctx, http.MethodGet, "/workspaces", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DuplicateProject clones a template project, carrying over notes,
// members, sections and custom fields.
func (c *Client) DuplicateProject(ctx context.Context, templateGID, name string) (*Project, error) {
	body := map[string]any{
		"data": map[string]any{
			"name":    name,
			"include": []string{"notes", "members", "sections", "custom_fields"},
		},
	}
	var out Project
	if err := c.do(ctx, http.MethodPost, "/projects/"+templateGID+"/duplicate", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateProject(ctx context.Context, name, workspaceGID string) (*Project, error) {
	body := map[string]any{
		"data": map[string]any{
			"name":      name,
			"workspace": workspaceGID,
		},
	}
	var out Project
	if err := c.do(ctx, http.MethodPost, "/projects", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateSection(ctx context.Context, projectGID, name string) (*Section, error) {
	body := map[string]any{
		"data": map[string]any{"name": name},
	}
	var out Section
	if err := c.do(ctx, http.MethodPost, "/projects/"+projectGID+"/sections", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateTask creates a task in the project and, when sectionGID is
// non-empty, binds it to that section with a second call. A failed section
// binding fails the whole operation even though the task already exists.
func (c *Client) CreateTask(ctx context.Context, projectGID, sectionGID, name, notes, dueOn string) (*Task, error) {
	data := map[string]any{
		"name":     name,
		"notes":    notes,
		"projects": []string{projectGID},
	}
	if dueOn != "" {
		data["due_on"] = dueOn
	}
	var out Task
	if err := c.do(ctx, http.MethodPost, "/tasks", map[string]any{"data": data}, &out); err != nil {
		return nil, err
	}
	if sectionGID != "" {
		body := map[string]any{
			"data": map[string]any{"task": out.GID},
		}
		if err := c.do(ctx, http.MethodPost, "/sections/"+sectionGID+"/addTask", body, nil); err != nil {
			return nil, err
		}
	}
	return &out, nil
}

func (c *Client) UpdateTaskNotes(ctx context.Context, taskGID, notes string) error {
	body := map[string]any{
		"data": map[string]any{"notes": notes},
	}
	return c.do(ctx, http.MethodPut, "/tasks/"+taskGID, body, nil)
}

// AttachFile uploads a binary artifact to a task via multipart form data.
func (c *Client) AttachFile(ctx context.Context, taskGID string, data []byte, filename, contentType string) (*Attachment, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tasks/"+taskGID+"/attachments", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out Attachment
	if err := decodeResponse(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return decodeResponse(resp, out)
}

// decodeResponse unwraps the {"data": ...} envelope or turns a non-2xx
// response into an *APIError.
func decodeResponse(resp *http.Response, out any) error {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errorFromResponse(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if len(env.Data) == 0 {
		return fmt.Errorf("decode response: missing data envelope")
	}
	return json.Unmarshal(env.Data, out)
}
