// Package calendar talks to the Google Calendar v3 REST API on behalf of a
// user whose OAuth credential is stored with their account.
package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"teamboard/pkg/config"
	"teamboard/pkg/trace"
)

const (
	defaultBaseURL = "https://www.googleapis.com/calendar/v3"
	scopeEvents    = "https://www.googleapis.com/auth/calendar.events"
	maxUpcoming    = 50
)

var (
	ErrNotConnected = errors.New("Google account not connected")
	ErrTokenInvalid = errors.New("Google token expired or invalid")
)

// ProviderError is a non-2xx answer from the calendar API.
type ProviderError struct {
	Code int
	Body string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("calendar provider returned %d: %s", e.Code, e.Body)
}

type EventTime struct {
	DateTime string `json:"dateTime,omitempty"`
	Date     string `json:"date,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

type Event struct {
	ID          string    `json:"id,omitempty"`
	Summary     string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	HTMLLink    string    `json:"htmlLink,omitempty"`
	Status      string    `json:"status,omitempty"`
	Start       EventTime `json:"start"`
	End         EventTime `json:"end"`
}

type eventList struct {
	Items []Event `json:"items"`
}

type Client struct {
	conf    *oauth2.Config
	baseURL string
	timeout time.Duration
	logger  *zap.Logger
}

func NewClient(cfg config.CalendarConfig, logger *zap.Logger) *Client {
	return &Client{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoints.Google,
			Scopes:       []string{scopeEvents},
		},
		baseURL: defaultBaseURL,
		timeout: cfg.Timeout,
		logger:  logger,
	}
}

// WithEndpoints points the client at alternative OAuth and API hosts.
func (c *Client) WithEndpoints(ep oauth2.Endpoint, apiBaseURL string) *Client {
	c.conf.Endpoint = ep
	c.baseURL = apiBaseURL
	return c
}

// Exchange trades an authorization code for a token.
func (c *Client) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()
	tok, err := c.conf.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange calendar code: %w", err)
	}
	return tok, nil
}

// ListUpcoming returns up to 50 upcoming events of the primary calendar,
// expanded and ordered by start time. The returned token differs from tok
// when it was refreshed and should be persisted.
func (c *Client) ListUpcoming(ctx context.Context, tok *oauth2.Token, now time.Time) ([]Event, *oauth2.Token, error) {
	q := url.Values{}
	q.Set("timeMin", now.UTC().Format(time.RFC3339))
	q.Set("maxResults", fmt.Sprint(maxUpcoming))
	q.Set("singleEvents", "true")
	q.Set("orderBy", "startTime")

	var out eventList
	fresh, err := c.do(ctx, tok, http.MethodGet, "/calendars/primary/events?"+q.Encode(), nil, &out)
	if err != nil {
		return nil, fresh, err
	}
	if out.Items == nil {
		out.Items = []Event{}
	}
	return out.Items, fresh, nil
}

// Insert adds an event to the primary calendar.
func (c *Client) Insert(ctx context.Context, tok *oauth2.Token, ev Event) (*Event, *oauth2.Token, error) {
	var out Event
	fresh, err := c.do(ctx, tok, http.MethodPost, "/calendars/primary/events", ev, &out)
	if err != nil {
		return nil, fresh, err
	}
	return &out, fresh, nil
}

func (c *Client) do(ctx context.Context, tok *oauth2.Token, method, path string, in, out any) (*oauth2.Token, error) {
	if tok == nil || (tok.AccessToken == "" && tok.RefreshToken == "") {
		return nil, ErrNotConnected
	}
	ctx, cancel := c.bound(ctx)
	defer cancel()

	src := oauth2.ReuseTokenSource(tok, c.conf.TokenSource(ctx, tok))
	httpClient := oauth2.NewClient(ctx, src)

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if traceID := trace.FromContext(ctx); traceID != "" {
		req.Header.Set(trace.HeaderName(), traceID)
	}

	resp, err := httpClient.Do(req)
	fresh := refreshed(tok, src)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			return fresh, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
		}
		return fresh, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fresh, ErrTokenInvalid
	case resp.StatusCode >= 300:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fresh, &ProviderError{Code: resp.StatusCode, Body: string(b)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fresh, fmt.Errorf("decode calendar response: %w", err)
	}
	return fresh, nil
}

func (c *Client) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// refreshed returns the current token of src when it differs from the
// original, nil otherwise.
func refreshed(orig *oauth2.Token, src oauth2.TokenSource) *oauth2.Token {
	cur, err := src.Token()
	if err != nil || cur == nil || cur.AccessToken == orig.AccessToken {
		return nil
	}
	return cur
}

// EventForTask builds an all-day event on the task's due date.
func EventForTask(title, description string, due time.Time) Event {
	day := due.UTC().Format("2006-01-02")
	next := due.UTC().AddDate(0, 0, 1).Format("2006-01-02")
	return Event{
		Summary:     title,
		Description: description,
		Start:       EventTime{Date: day},
		End:         EventTime{Date: next},
	}
}
