package calendar

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
	"golang.org/x/oauth2"

	"teamboard/pkg/config"
)

func newTestClient(t *testing.T, api http.HandlerFunc) *Client {
	t.Helper()
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		w.Header().Set("Content-Type", "application/json")
		switch r.Form.Get("grant_type") {
		case "authorization_code":
			_, _ = w.Write([]byte(`{"access_token":"exchanged","refresh_token":"r1","token_type":"Bearer","expires_in":3600}`))
		case "refresh_token":
			_, _ = w.Write([]byte(`{"access_token":"refreshed","token_type":"Bearer","expires_in":3600}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	t.Cleanup(tokenSrv.Close)
	apiSrv := httptest.NewServer(api)
	t.Cleanup(apiSrv.Close)

	c := NewClient(config.CalendarConfig{ClientID: "id", ClientSecret: "secret", Timeout: 2 * time.Second}, zap.NewNop())
	return c.WithEndpoints(oauth2.Endpoint{TokenURL: tokenSrv.URL, AuthStyle: oauth2.AuthStyleInParams}, apiSrv.URL)
}

func TestClient_Exchange(t *testing.T) {
	c := newTestClient(t, func(http.ResponseWriter, *http.Request) {})
	tok, err := c.Exchange(context.Background(), "code")
	require.NoError(t, err)
	assert.Equal(t, "exchanged", tok.AccessToken)
	assert.Equal(t, "r1", tok.RefreshToken)
}

func TestClient_ListUpcomingRefreshesExpiredToken(t *testing.T) {
	var gotQuery map[string][]string
	var gotAuth string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/calendars/primary/events", r.URL.Path)
		gotQuery = r.URL.Query()
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"items": []Event{{ID: "e1", Summary: "Standup"}},
		})
	})

	expired := &oauth2.Token{AccessToken: "old", RefreshToken: "r1", Expiry: time.Now().Add(-time.Hour)}
	events, fresh, err := c.ListUpcoming(context.Background(), expired, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	require.NoError(t, err)

	require.Len(t, events, 1)
	assert.Equal(t, "Standup", events[0].Summary)
	require.NotNil(t, fresh)
	assert.Equal(t, "refreshed", fresh.AccessToken)
	assert.Equal(t, "Bearer refreshed", gotAuth)
	assert.Equal(t, []string{"2026-01-02T03:04:05Z"}, gotQuery["timeMin"])
	assert.Equal(t, []string{"50"}, gotQuery["maxResults"])
	assert.Equal(t, []string{"true"}, gotQuery["singleEvents"])
	assert.Equal(t, []string{"startTime"}, gotQuery["orderBy"])
}

func TestClient_Errors(t *testing.T) {
	status := http.StatusUnauthorized
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	})
	valid := &oauth2.Token{AccessToken: "ok", Expiry: time.Now().Add(time.Hour)}

	_, _, err := c.ListUpcoming(context.Background(), nil, time.Now())
	assert.ErrorIs(t, err, ErrNotConnected)

	_, _, err = c.ListUpcoming(context.Background(), valid, time.Now())
	assert.ErrorIs(t, err, ErrTokenInvalid)

	status = http.StatusServiceUnavailable
	_, _, err = c.Insert(context.Background(), valid, EventForTask("t", "", time.Now()))
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, http.StatusServiceUnavailable, pe.Code)
}

func TestEventForTask(t *testing.T) {
	ev := EventForTask("Ship", "v1", time.Date(2026, 3, 31, 22, 0, 0, 0, time.UTC))
	assert.Equal(t, "2026-03-31", ev.Start.Date)
	assert.Equal(t, "2026-04-01", ev.End.Date)
}
