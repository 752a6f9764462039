package board

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"teamboard/internal/model"
	"teamboard/internal/realtime"
)

// APIClient is a minimal REST client for the board endpoints.
type APIClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewAPIClient(baseURL, token string, timeout time.Duration, logger *zap.Logger) *APIClient {
	return &APIClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

func (c *APIClient) Projects(ctx context.Context) ([]model.ProjectView, error) {
	var out []model.ProjectView
	err := c.do(ctx, http.MethodGet, "/api/projects", nil, &out)
	return out, err
}

func (c *APIClient) Tasks(ctx context.Context, projectID string) ([]model.TaskView, error) {
	var out []model.TaskView
	err := c.do(ctx, http.MethodGet, "/api/tasks/project/"+url.PathEscape(projectID), nil, &out)
	return out, err
}

// Reorder implements Persister over PUT /api/tasks/reorder.
func (c *APIClient) Reorder(ctx context.Context, projectID string, items []model.ReorderItem) error {
	body := struct {
		Tasks     []model.ReorderItem `json:"tasks"`
		ProjectID string              `json:"projectId"`
	}{Tasks: items, ProjectID: projectID}
	return c.do(ctx, http.MethodPut, "/api/tasks/reorder", body, nil)
}

func (c *APIClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		c.logger.Debug("Board API call failed", zap.String("method", method), zap.String("path", path), zap.Int("status", resp.StatusCode))
		return fmt.Errorf("%s %s returned %d: %s", method, path, resp.StatusCode, e.Message)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Watch connects to the websocket endpoint, joins the store's project room
// and merges every frame until ctx ends or the connection drops. onChange
// runs after each merged frame.
func Watch(ctx context.Context, wsURL, token string, store *Store, onChange func(event string), logger *zap.Logger) error {
	u, err := url.Parse(wsURL)
	if err != nil {
		return fmt.Errorf("parse websocket url: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", u.Redacted(), err)
	}
	defer conn.Close()

	// 退出时关闭连接以打断阻塞的读
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if store.ProjectID() != "" {
		join, _ := json.Marshal(store.ProjectID())
		if err := conn.WriteJSON(realtime.Frame{Event: realtime.SignalJoinProject, Data: join}); err != nil {
			return fmt.Errorf("join project: %w", err)
		}
	}

	for {
		var f realtime.Frame
		if err := conn.ReadJSON(&f); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read frame: %w", err)
		}
		if err := store.Apply(f); err != nil {
			logger.Warn("Dropping malformed frame", zap.String("event", f.Event), zap.Error(err))
			continue
		}
		if onChange != nil {
			onChange(f.Event)
		}
	}
}
