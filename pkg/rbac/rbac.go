package rbac

import (
	"context"
	"fmt"
)

// 权限常量
const (
	ActionCreate = "create"
	ActionRead   = "read"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionManage = "manage" // membership, reorder
)

// 实体类型
const (
	EntityProject = "project"
	EntityTask    = "task"
	EntityUser    = "user"
)

// 角色常量
const (
	RoleMember = "member"
	RoleViewer = "viewer"
)

// Authorizer decides whether actor may perform action on entity. Entity is
// the entity kind; resource ids are carried by the caller when needed.
type Authorizer interface {
	Authorize(ctx context.Context, actor, action, entity string) error
}

// AllowAll authorizes every request. The workspace is globally shared.
type AllowAll struct{}

func (AllowAll) Authorize(context.Context, string, string, string) error { return nil }

// RoleLookup resolves the role of a user.
type RoleLookup func(ctx context.Context, userID string) (string, error)

// RoleBased checks actions against a static role permission table.
type RoleBased struct {
	lookup RoleLookup
}

// 角色权限映射
var rolePermissions = map[string]map[string][]string{
	RoleMember: {
		EntityProject: {ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionManage},
		EntityTask:    {ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionManage},
		EntityUser:    {ActionRead, ActionUpdate},
	},
	RoleViewer: {
		EntityProject: {ActionRead},
		EntityTask:    {ActionRead},
		EntityUser:    {ActionRead},
	},
}

func NewRoleBased(lookup RoleLookup) *RoleBased {
	return &RoleBased{lookup: lookup}
}

func (r *RoleBased) Authorize(ctx context.Context, actor, action, entity string) error {
	role, err := r.lookup(ctx, actor)
	if err != nil {
		return fmt.Errorf("resolve role for %s: %w", actor, err)
	}
	if !HasPermission(role, action, entity) {
		return &PermissionDeniedError{UserID: actor, Action: action, Entity: entity}
	}
	return nil
}

// HasPermission 检查角色是否有指定权限
func HasPermission(role, action, entity string) bool {
	for _, a := range rolePermissions[role][entity] {
		if a == action {
			return true
		}
	}
	return false
}

// PermissionDeniedError 表示权限不足的错误
type PermissionDeniedError struct {
	UserID string
	Action string
	Entity string
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("insufficient permissions: %s %s", e.Action, e.Entity)
}
