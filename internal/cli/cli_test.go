package cli

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// --- Client ---

func TestClient_ListTasks(t *testing.T) {
	var gotAuth, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.RawQuery
		if r.URL.Path != "/api/v1/tasks" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[{"id":"t1","title":"a","status":"pending","priority":4.5}],"total":11,"page":2,"limit":10}`))
	}))
	defer srv.Close()

	page, err := NewClient(srv.URL, "tok").ListTasks(context.Background(), ListTasksOpts{
		Status: "pending",
		SortBy: "deadline",
		Page:   2,
	})
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}

	if gotAuth != "Bearer tok" {
		t.Errorf("expected bearer token, got %q", gotAuth)
	}
	for _, want := range []string{"status=pending", "sort_by=deadline", "page=2"} {
		if !strings.Contains(gotQuery, want) {
			t.Errorf("query %q missing %q", gotQuery, want)
		}
	}
	if strings.Contains(gotQuery, "limit=") {
		t.Errorf("unset limit must not be sent: %q", gotQuery)
	}
	if page.Total != 11 || page.Page != 2 || len(page.Tasks) != 1 || page.Tasks[0].Priority != 4.5 {
		t.Errorf("unexpected page: %+v", page)
	}
}

func TestClient_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error":{"code":"CONFLICT","message":"dependencies not completed","task_id":"t9"}}`))
	}))
	defer srv.Close()

	status := "completed"
	_, err := NewClient(srv.URL, "").UpdateTask(context.Background(), "t9", UpdateTaskRequest{Status: &status})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Status != http.StatusConflict || apiErr.Code != "CONFLICT" || apiErr.TaskID != "t9" {
		t.Errorf("unexpected error: %+v", apiErr)
	}
	if !strings.Contains(apiErr.Error(), "task t9") {
		t.Errorf("expected task id in message, got %q", apiErr.Error())
	}
}

func TestClient_NonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "").GetTask(context.Background(), "x")

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadGateway {
		t.Errorf("expected 502 APIError, got %v", err)
	}
}

func TestClient_DeleteNoContent(t *testing.T) {
	var method string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	if err := NewClient(srv.URL, "").DeleteTask(context.Background(), "t1"); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	if method != http.MethodDelete {
		t.Errorf("expected DELETE, got %s", method)
	}
}

func TestClient_ListLogsForTask(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.Write([]byte(`{"data":[],"total":0}`))
	}))
	defer srv.Close()

	if _, err := NewClient(srv.URL, "").ListLogs(context.Background(), ListLogsOpts{TaskID: "t1"}); err != nil {
		t.Fatalf("ListLogs: %v", err)
	}
	if path != "/api/v1/tasks/t1/logs" {
		t.Errorf("expected task log route, got %s", path)
	}
}

func TestClient_BulkUpdateBody(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&body)
		w.Write([]byte(`{"data":{"message":"tasks updated successfully","updated":1,"tasks":[]}}`))
	}))
	defer srv.Close()

	status := "in-progress"
	resp, err := NewClient(srv.URL, "").BulkUpdate(context.Background(), BulkUpdateRequest{
		Tasks: []BulkUpdateItem{{ID: "y", UpdateTaskRequest: UpdateTaskRequest{Status: &status}}},
	})
	if err != nil {
		t.Fatalf("BulkUpdate: %v", err)
	}
	if resp.Updated != 1 {
		t.Errorf("expected 1 updated, got %d", resp.Updated)
	}

	items, _ := body["tasks"].([]any)
	if len(items) != 1 {
		t.Fatalf("expected 1 item in body, got %v", body)
	}
	item := items[0].(map[string]any)
	if item["id"] != "y" || item["status"] != "in-progress" {
		t.Errorf("expected flattened item, got %v", item)
	}
	if _, ok := item["title"]; ok {
		t.Errorf("unset fields must be omitted: %v", item)
	}
}

// --- Input parsing ---

func TestParseDeadline(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"2026-06-01T10:00:00Z", "2026-06-01T10:00:00Z", false},
		{"2026-06-01", "2026-06-01T23:59:59Z", false},
		{"tomorrow", "", true},
	}

	for _, tt := range tests {
		got, err := parseDeadline(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseDeadline(%q): err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseDeadline(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestReadBulkRequest(t *testing.T) {
	wrapped := `{"tasks":[{"id":"x","status":"completed"},{"id":"y","status":"in-progress"}]}`
	bare := `[{"id":"x","title":"renamed"}]`

	req, err := readBulkRequest(strings.NewReader(wrapped), "-")
	if err != nil {
		t.Fatalf("wrapped: %v", err)
	}
	if len(req.Tasks) != 2 || *req.Tasks[1].Status != "in-progress" {
		t.Errorf("unexpected wrapped result: %+v", req)
	}

	path := filepath.Join(t.TempDir(), "bulk.json")
	if err := os.WriteFile(path, []byte(bare), 0o600); err != nil {
		t.Fatal(err)
	}
	req, err = readBulkRequest(nil, path)
	if err != nil {
		t.Fatalf("bare: %v", err)
	}
	if len(req.Tasks) != 1 || *req.Tasks[0].Title != "renamed" {
		t.Errorf("unexpected bare result: %+v", req)
	}

	if _, err := readBulkRequest(strings.NewReader(`{"tasks":[]}`), "-"); err == nil {
		t.Error("expected error for empty batch")
	}
}

func TestPatchFlags_OnlyChanged(t *testing.T) {
	cmd := newTaskUpdateCmd(nil, nil)
	if err := cmd.ParseFlags([]string{"--status", "blocked", "--depends-on", ""}); err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}

	var flags patchFlags
	flags.status = "blocked"
	req, err := flags.request(cmd)
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	if req.Status == nil || *req.Status != "blocked" {
		t.Errorf("expected status blocked, got %v", req.Status)
	}
	if req.Dependencies == nil || len(*req.Dependencies) != 0 {
		t.Errorf("expected explicit empty dependencies, got %v", req.Dependencies)
	}
	if req.Title != nil || req.Deadline != nil {
		t.Errorf("unchanged flags must stay nil: %+v", req)
	}
}

func TestPatchFlags_Empty(t *testing.T) {
	cmd := newTaskUpdateCmd(nil, nil)
	var flags patchFlags

	if _, err := flags.request(cmd); err == nil {
		t.Error("expected error when no flags are set")
	}
}
