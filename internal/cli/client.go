package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// TaskResponse — задача из API.
type TaskResponse struct {
	ID                   string   `json:"id"`
	Title                string   `json:"title"`
	Description          string   `json:"description"`
	Status               string   `json:"status"`
	Priority             float64  `json:"priority"`
	AssignedTo           string   `json:"assigned_to"`
	Dependencies         []string `json:"dependencies"`
	Deadline             string   `json:"deadline"`
	Tags                 []string `json:"tags"`
	EstimatedHours       float64  `json:"estimated_hours"`
	ActualHours          float64  `json:"actual_hours"`
	CompletionPercentage float64  `json:"completion_percentage"`
	CreatedBy            string   `json:"created_by"`
	CreatedAt            string   `json:"created_at"`
	UpdatedAt            string   `json:"updated_at"`
}

// LogEntryResponse — запись журнала аудита из API.
type LogEntryResponse struct {
	ID        string         `json:"id"`
	Action    string         `json:"action"`
	TaskID    string         `json:"task_id"`
	UserID    string         `json:"user_id"`
	Changes   map[string]any `json:"changes"`
	Timestamp string         `json:"timestamp"`
	Metadata  map[string]any `json:"metadata"`
}

// BulkUpdateResponse — результат массового обновления.
type BulkUpdateResponse struct {
	Message string         `json:"message"`
	Updated int            `json:"updated"`
	Tasks   []TaskResponse `json:"tasks"`
}

// TaskPage — страница списка задач.
type TaskPage struct {
	Tasks []TaskResponse
	Total int
	Page  int
	Limit int
}

// --- Request types ---

// CreateTaskRequest — создание задачи.
type CreateTaskRequest struct {
	Title          string   `json:"title"`
	Description    string   `json:"description,omitempty"`
	AssignedTo     string   `json:"assigned_to"`
	Dependencies   []string `json:"dependencies,omitempty"`
	Deadline       string   `json:"deadline"`
	Tags           []string `json:"tags,omitempty"`
	EstimatedHours float64  `json:"estimated_hours,omitempty"`
}

// UpdateTaskRequest — частичное обновление задачи. nil-поля не отправляются.
type UpdateTaskRequest struct {
	Title                *string   `json:"title,omitempty"`
	Description          *string   `json:"description,omitempty"`
	Status               *string   `json:"status,omitempty"`
	AssignedTo           *string   `json:"assigned_to,omitempty"`
	Dependencies         *[]string `json:"dependencies,omitempty"`
	Deadline             *string   `json:"deadline,omitempty"`
	Tags                 *[]string `json:"tags,omitempty"`
	EstimatedHours       *float64  `json:"estimated_hours,omitempty"`
	ActualHours          *float64  `json:"actual_hours,omitempty"`
	CompletionPercentage *float64  `json:"completion_percentage,omitempty"`
}

// BulkUpdateItem — одно обновление в массовом запросе.
type BulkUpdateItem struct {
	ID string `json:"id"`
	UpdateTaskRequest
}

// BulkUpdateRequest — массовое обновление.
type BulkUpdateRequest struct {
	Tasks []BulkUpdateItem `json:"tasks"`
}

// ListTasksOpts — параметры фильтрации задач.
type ListTasksOpts struct {
	Status      string
	MinPriority string
	AssignedTo  string
	Search      string
	SortBy      string
	SortOrder   string
	Page        int
	Limit       int
}

// ListLogsOpts — параметры фильтрации журнала.
type ListLogsOpts struct {
	TaskID string
	UserID string
	Action string
	Limit  int
	Offset int
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Field   string `json:"field"`
		TaskID  string `json:"task_id"`
	} `json:"error"`
}

// APIError — ошибка, которую вернул сервер.
type APIError struct {
	Status  int
	Code    string
	Message string
	Field   string
	TaskID  string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Field != "" {
		msg += " (field " + e.Field + ")"
	}
	if e.TaskID != "" {
		msg += " (task " + e.TaskID + ")"
	}
	return msg
}

// --- Client ---

// Client — HTTP-клиент для taskflow API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient создаёт клиент для API. token передаётся как Bearer.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Tasks ---

// ListTasks возвращает страницу задач.
func (c *Client) ListTasks(ctx context.Context, opts ListTasksOpts) (*TaskPage, error) {
	params := url.Values{}
	setParam(params, "status", opts.Status)
	setParam(params, "priority", opts.MinPriority)
	setParam(params, "assigned_to", opts.AssignedTo)
	setParam(params, "search", opts.Search)
	setParam(params, "sort_by", opts.SortBy)
	setParam(params, "sort_order", opts.SortOrder)
	setIntParam(params, "page", opts.Page)
	setIntParam(params, "limit", opts.Limit)

	page := &TaskPage{}
	lr, err := c.list(ctx, "/api/v1/tasks", params, &page.Tasks)
	if err != nil {
		return nil, err
	}
	page.Total, page.Page, page.Limit = lr.Total, lr.Page, lr.Limit
	return page, nil
}

// GetTask возвращает задачу по ID.
func (c *Client) GetTask(ctx context.Context, id string) (*TaskResponse, error) {
	var task TaskResponse
	err := c.get(ctx, "/api/v1/tasks/"+url.PathEscape(id), &task)
	return &task, err
}

// CreateTask создаёт задачу.
func (c *Client) CreateTask(ctx context.Context, req CreateTaskRequest) (*TaskResponse, error) {
	var task TaskResponse
	err := c.post(ctx, "/api/v1/tasks", req, &task)
	return &task, err
}

// UpdateTask частично обновляет задачу.
func (c *Client) UpdateTask(ctx context.Context, id string, req UpdateTaskRequest) (*TaskResponse, error) {
	var task TaskResponse
	err := c.put(ctx, "/api/v1/tasks/"+url.PathEscape(id), req, &task)
	return &task, err
}

// BulkUpdate применяет набор обновлений.
func (c *Client) BulkUpdate(ctx context.Context, req BulkUpdateRequest) (*BulkUpdateResponse, error) {
	var resp BulkUpdateResponse
	err := c.post(ctx, "/api/v1/tasks/bulk-update", req, &resp)
	return &resp, err
}

// DeleteTask удаляет задачу.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.delete(ctx, "/api/v1/tasks/"+url.PathEscape(id))
}

// --- Logs ---

// ListLogs возвращает записи журнала аудита.
// Если TaskID задан, используется маршрут журнала задачи.
func (c *Client) ListLogs(ctx context.Context, opts ListLogsOpts) ([]LogEntryResponse, error) {
	params := url.Values{}
	setParam(params, "user_id", opts.UserID)
	setParam(params, "action", opts.Action)
	setIntParam(params, "limit", opts.Limit)
	setIntParam(params, "offset", opts.Offset)

	path := "/api/v1/logs"
	if opts.TaskID != "" {
		path = "/api/v1/tasks/" + url.PathEscape(opts.TaskID) + "/logs"
	}

	var entries []LogEntryResponse
	_, err := c.list(ctx, path, params, &entries)
	return entries, err
}

// --- HTTP helpers ---

func setParam(params url.Values, key, value string) {
	if value != "" {
		params.Set(key, value)
	}
}

func setIntParam(params url.Values, key string, value int) {
	if value > 0 {
		params.Set(key, strconv.Itoa(value))
	}
}

func (c *Client) get(ctx context.Context, path string, result any) error {
	return c.doData(ctx, http.MethodGet, path, nil, result)
}

func (c *Client) post(ctx context.Context, path string, body any, result any) error {
	return c.doData(ctx, http.MethodPost, path, body, result)
}

func (c *Client) put(ctx context.Context, path string, body any, result any) error {
	return c.doData(ctx, http.MethodPut, path, body, result)
}

func (c *Client) delete(ctx context.Context, path string) error {
	resp, err := c.do(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.checkError(resp)
}

func (c *Client) list(ctx context.Context, path string, params url.Values, result any) (*listResponse, error) {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return nil, err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if err := json.Unmarshal(lr.Data, result); err != nil {
		return nil, fmt.Errorf("failed to decode data: %w", err)
	}
	return &lr, nil
}

func (c *Client) doData(ctx context.Context, method, path string, body any, result any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil || er.Error.Code == "" {
		return &APIError{Status: resp.StatusCode, Code: "HTTP_" + strconv.Itoa(resp.StatusCode), Message: http.StatusText(resp.StatusCode)}
	}

	return &APIError{
		Status:  resp.StatusCode,
		Code:    er.Error.Code,
		Message: er.Error.Message,
		Field:   er.Error.Field,
		TaskID:  er.Error.TaskID,
	}
}
