package mqhandler

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	mqcontracts "teamboard/contracts/mq"
	"teamboard/internal/calendar"
	"teamboard/pkg/util"
)

type fakeCalendar struct {
	calls []string
	errs  map[string]error
}

func (f *fakeCalendar) AddTaskEvent(_ context.Context, userID string, _ mqcontracts.TaskCreatedPayload) (bool, error) {
	f.calls = append(f.calls, userID)
	if err := f.errs[userID]; err != nil {
		return false, err
	}
	return true, nil
}

func newHandler(t *testing.T, cal CalendarAdder) *TaskCreatedCalendarHandler {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	h := NewTaskCreatedCalendarHandler(cal, util.NewDeduper(rdb, time.Hour, zap.NewNop()), util.NewRetryCounter(rdb, time.Hour), zap.NewNop())
	h.maxRetries = 2
	return h
}

func payload(t *testing.T, p mqcontracts.TaskCreatedPayload) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(p)
	require.NoError(t, err)
	return raw
}

func TestCalendarHandlerAddsOncePerUser(t *testing.T) {
	cal := &fakeCalendar{}
	h := newHandler(t, cal)
	due := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	raw := payload(t, mqcontracts.TaskCreatedPayload{
		TaskID:    "t1",
		Title:     "Ship",
		DueDate:   &due,
		CreatedBy: "alice",
		Assignees: []string{"bob", "alice", "bob"},
	})

	require.NoError(t, h.Handle(context.Background(), raw))
	assert.Equal(t, []string{"alice", "bob"}, cal.calls)

	// redelivery is a no-op
	require.NoError(t, h.Handle(context.Background(), raw))
	assert.Len(t, cal.calls, 2)
}

func TestCalendarHandlerSkipsWithoutDueDate(t *testing.T) {
	cal := &fakeCalendar{}
	h := newHandler(t, cal)

	require.NoError(t, h.Handle(context.Background(), payload(t, mqcontracts.TaskCreatedPayload{TaskID: "t1", CreatedBy: "alice"})))
	assert.Empty(t, cal.calls)
}

func TestCalendarHandlerRetriesThenGivesUp(t *testing.T) {
	cal := &fakeCalendar{errs: map[string]error{
		"bob": &calendar.ProviderError{Code: 503, Body: "backend error"},
	}}
	h := newHandler(t, cal)
	due := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	raw := payload(t, mqcontracts.TaskCreatedPayload{TaskID: "t1", DueDate: &due, CreatedBy: "alice", Assignees: []string{"bob"}})

	err := h.Handle(context.Background(), raw)
	require.Error(t, err)
	retryable, _ := util.IsRetryableError(err)
	assert.True(t, retryable)

	// alice succeeded and is not retried; bob is
	require.Error(t, h.Handle(context.Background(), raw))
	assert.Equal(t, []string{"alice", "bob", "bob"}, cal.calls)

	err = h.Handle(context.Background(), raw)
	var permanent *util.PermanentError
	assert.True(t, errors.As(err, &permanent))
}

func TestCalendarHandlerPermanentFailures(t *testing.T) {
	cal := &fakeCalendar{errs: map[string]error{"alice": errors.New("unexpected")}}
	h := newHandler(t, cal)
	due := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	err := h.Handle(context.Background(), payload(t, mqcontracts.TaskCreatedPayload{TaskID: "t1", DueDate: &due, CreatedBy: "alice"}))
	var permanent *util.PermanentError
	assert.True(t, errors.As(err, &permanent))

	err = h.Handle(context.Background(), json.RawMessage(`{"task_id":`))
	require.Error(t, err)
	retryable, _ := util.IsRetryableError(err)
	assert.False(t, retryable)
}
