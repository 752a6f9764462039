package mqhandler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	mqcontracts "teamboard/contracts/mq"
	"teamboard/pkg/logger"
	"teamboard/pkg/trace"
	"teamboard/pkg/util"
)

const (
	calendarHandlerName = "calendar"
	defaultMaxRetries   = 5
)

// CalendarAdder puts a created task on one user's calendar.
type CalendarAdder interface {
	AddTaskEvent(ctx context.Context, userID string, task mqcontracts.TaskCreatedPayload) (bool, error)
}

// TaskCreatedCalendarHandler consumes task.created and adds a calendar
// event for the creator and every assignee who connected a calendar.
type TaskCreatedCalendarHandler struct {
	calendar     CalendarAdder
	deduper      *util.Deduper
	retryCounter *util.RetryCounter
	maxRetries   int64
	logger       *zap.Logger
}

func NewTaskCreatedCalendarHandler(calendar CalendarAdder, deduper *util.Deduper, retryCounter *util.RetryCounter, logger *zap.Logger) *TaskCreatedCalendarHandler {
	return &TaskCreatedCalendarHandler{
		calendar:     calendar,
		deduper:      deduper,
		retryCounter: retryCounter,
		maxRetries:   defaultMaxRetries,
		logger:       logger,
	}
}

func recipients(p mqcontracts.TaskCreatedPayload) []string {
	seen := make(map[string]struct{}, len(p.Assignees)+1)
	var out []string
	for _, id := range append([]string{p.CreatedBy}, p.Assignees...) {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func (h *TaskCreatedCalendarHandler) Handle(ctx context.Context, raw json.RawMessage) error {
	var p mqcontracts.TaskCreatedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.logger.Error("Invalid TaskCreatedPayload, sending to DLQ",
			zap.String("raw", string(raw)),
			zap.Error(err),
		)
		return fmt.Errorf("bad_payload: %w", err)
	}
	if p.TraceID != "" {
		ctx = trace.WithContext(ctx, p.TraceID)
	}
	log := logger.WithTrace(ctx, h.logger)

	if p.DueDate == nil {
		log.Debug("Task has no due date, skip calendar", zap.String("task_id", p.TaskID))
		return nil
	}

	var failed []error
	for _, userID := range recipients(p) {
		// 按 task:user 去重，重投时已成功的用户不会重复建事件
		dedupID := p.TaskID + ":" + userID
		if !h.deduper.AcquireOnce(ctx, calendarHandlerName, dedupID) {
			continue
		}

		added, err := h.calendar.AddTaskEvent(ctx, userID, p)
		if err != nil {
			h.deduper.Release(ctx, calendarHandlerName, dedupID)
			log.Warn("Failed to add task to calendar",
				zap.String("task_id", p.TaskID),
				zap.String("user_id", userID),
				zap.Error(err),
			)
			failed = append(failed, err)
			continue
		}
		if added {
			log.Info("Calendar event created",
				zap.String("task_id", p.TaskID),
				zap.String("user_id", userID),
			)
		}
	}

	retryKey := util.FormatRetryKey(calendarHandlerName, p.TaskID)
	if len(failed) == 0 {
		_ = h.retryCounter.Reset(ctx, retryKey)
		return nil
	}
	return h.handleFailure(ctx, errors.Join(failed...), retryKey, p.TaskID)
}

// handleFailure requeues retryable failures until the retry budget is spent,
// then hands the message to the DLQ.
func (h *TaskCreatedCalendarHandler) handleFailure(ctx context.Context, err error, retryKey, taskID string) error {
	retryCount, _ := h.retryCounter.IncrementAndGet(ctx, retryKey)
	isRetryable, errType := util.IsRetryableError(err)

	logger.WithTrace(ctx, h.logger).Warn("Calendar sync error",
		zap.String("task_id", taskID),
		zap.String("type", errType),
		zap.Bool("retryable", isRetryable),
		zap.Int64("retry", retryCount),
	)

	if !util.ShouldRetry(retryCount, h.maxRetries, isRetryable) {
		_ = h.retryCounter.Reset(ctx, retryKey)
		return &util.PermanentError{Err: err}
	}
	return err
}
