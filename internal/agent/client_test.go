package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"teamboard/pkg/trace"
)

func TestClient_Chat(t *testing.T) {
	var got ChatRequest
	var gotTrace string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		gotTrace = r.Header.Get(trace.HeaderName())
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"status":"success","intent":"task","reply":"ok",
			"task_data":{"tasks":[{"name":"Write docs","priority":"HIGH","project_name":"Apollo"}]}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, zap.NewNop())
	ctx := trace.WithContext(context.Background(), "trace-1")
	resp, err := c.Chat(ctx, ChatRequest{Message: "add a task", FileContent: "notes"})
	require.NoError(t, err)

	assert.Equal(t, "add a task", got.Message)
	assert.Equal(t, "notes", got.FileContent)
	assert.Equal(t, "trace-1", gotTrace)
	assert.Equal(t, IntentTask, resp.Intent)
	specs := resp.TaskData.Specs()
	require.Len(t, specs, 1)
	assert.Equal(t, "Write docs", specs[0].Title())
	assert.Equal(t, "Apollo", specs[0].ProjectName)
}

func TestTaskData_InlineSpec(t *testing.T) {
	var d TaskData
	require.NoError(t, json.Unmarshal([]byte(`{"name":"Solo","priority":"low"}`), &d))
	specs := d.Specs()
	require.Len(t, specs, 1)
	assert.Equal(t, "Solo", specs[0].Title())

	var empty *TaskData
	assert.Empty(t, empty.Specs())
}

func TestClient_StatusErrorAndBreaker(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, zap.NewNop())
	for i := 0; i < 3; i++ {
		_, err := c.Analyze(context.Background(), "d")
		var se *StatusError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, http.StatusBadGateway, se.Code)
	}

	_, err := c.Analyze(context.Background(), "d")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 3, calls)
}

func TestClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 20*time.Millisecond, zap.NewNop())
	_, err := c.Chat(context.Background(), ChatRequest{Message: "hi"})
	assert.Error(t, err)
}
