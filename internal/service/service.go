package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"teamboard/pkg/rbac"
)

var (
	newID = uuid.NewString
	now   = func() time.Time { return time.Now().UTC() }
)

// authorize consults the policy seam. A nil authorizer allows everything.
func authorize(ctx context.Context, authz Authorizer, actor, action, entity string) error {
	if authz == nil {
		return nil
	}
	if err := authz.Authorize(ctx, actor, action, entity); err != nil {
		return &Error{Kind: KindForbidden, Message: "Not authorized", Err: err}
	}
	return nil
}

var _ Authorizer = rbac.AllowAll{}

// ParseDate accepts RFC 3339 timestamps and bare YYYY-MM-DD dates.
func ParseDate(raw string) (*time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, true
		}
	}
	return nil, false
}
