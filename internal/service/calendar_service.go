package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	mqcontracts "teamboard/contracts/mq"
	"teamboard/internal/calendar"
	"teamboard/internal/model"
	"teamboard/internal/repository"
	"teamboard/pkg/logger"
)

type CalendarService struct {
	users    UserStore
	provider CalendarProvider
	logger   *zap.Logger
}

func NewCalendarService(users UserStore, provider CalendarProvider, logger *zap.Logger) *CalendarService {
	return &CalendarService{users: users, provider: provider, logger: logger}
}

func toOAuth(t *model.OAuthToken) *oauth2.Token {
	if t == nil {
		return nil
	}
	return &oauth2.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		Expiry:       t.Expiry,
		TokenType:    "Bearer",
	}
}

func fromOAuth(t *oauth2.Token) model.OAuthToken {
	return model.OAuthToken{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		Expiry:       t.Expiry,
	}
}

// Connect exchanges an authorization code and stores the credential.
func (s *CalendarService) Connect(ctx context.Context, userID, code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return BadRequest("Authorization code is required")
	}
	tok, err := s.provider.Exchange(ctx, code)
	if err != nil {
		logger.WithTrace(ctx, s.logger).Warn("Calendar code exchange failed", zap.String("user_id", userID), zap.Error(err))
		return BadRequest("Failed to connect Google account")
	}
	if err := s.users.SaveCalendarToken(ctx, userID, fromOAuth(tok)); err != nil {
		return storeErr(err, "User not found")
	}
	logger.WithTrace(ctx, s.logger).Info("Calendar connected", zap.String("user_id", userID))
	return nil
}

// Events lists the user's upcoming primary-calendar events. A refreshed
// credential is written back.
func (s *CalendarService) Events(ctx context.Context, userID string) ([]calendar.Event, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, storeErr(err, "User not found")
	}
	if u.Calendar == nil || u.Calendar.AccessToken == "" {
		return nil, BadRequest(calendar.ErrNotConnected.Error())
	}

	events, fresh, err := s.provider.ListUpcoming(ctx, toOAuth(u.Calendar), now())
	s.persistFresh(ctx, userID, fresh)
	if err != nil {
		return nil, s.calendarErr(ctx, userID, err, "Failed to fetch Google Calendar events")
	}
	return events, nil
}

// AddTaskEvent puts an all-day event for a created task on userID's calendar.
// It reports false without error when the task has no due date or the user
// has not connected a calendar.
func (s *CalendarService) AddTaskEvent(ctx context.Context, userID string, task mqcontracts.TaskCreatedPayload) (bool, error) {
	if task.DueDate == nil {
		return false, nil
	}
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if u.Calendar == nil || u.Calendar.AccessToken == "" {
		return false, nil
	}

	ev := calendar.EventForTask(task.Title, "", *task.DueDate)
	_, fresh, err := s.provider.Insert(ctx, toOAuth(u.Calendar), ev)
	s.persistFresh(ctx, userID, fresh)
	if err != nil {
		if errors.Is(err, calendar.ErrNotConnected) {
			return false, nil
		}
		return false, err
	}
	logger.WithTrace(ctx, s.logger).Info("Task added to calendar",
		zap.String("user_id", userID),
		zap.String("task_id", task.TaskID),
	)
	return true, nil
}

func (s *CalendarService) persistFresh(ctx context.Context, userID string, fresh *oauth2.Token) {
	if fresh == nil {
		return
	}
	if err := s.users.SaveCalendarToken(ctx, userID, fromOAuth(fresh)); err != nil {
		logger.WithTrace(ctx, s.logger).Warn("Failed to persist refreshed calendar token",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}
}

func (s *CalendarService) calendarErr(ctx context.Context, userID string, err error, msg string) error {
	logger.WithTrace(ctx, s.logger).Warn("Calendar call failed", zap.String("user_id", userID), zap.Error(err))
	switch {
	case errors.Is(err, calendar.ErrTokenInvalid):
		return &Error{Kind: KindUnauthorized, Message: calendar.ErrTokenInvalid.Error(), Err: err}
	case errors.Is(err, calendar.ErrNotConnected):
		return &Error{Kind: KindBadRequest, Message: calendar.ErrNotConnected.Error(), Err: err}
	default:
		return Internal(msg, err)
	}
}
