package iam

import (
	"fmt"

	"github.com/casbin/casbin/v2"

	"github.com/TBMCG/RSS-feed/internal/auth"
)

// Authorizer answers capability questions for a set of role names using the
// static Casbin policy. It never mutates enforcer state.
type Authorizer struct {
	enforcer casbin.IEnforcer
}

// NewAuthorizer loads the embedded role policy.
func NewAuthorizer() (*Authorizer, error) {
	enforcer, err := auth.InitEnforcer()
	if err != nil {
		return nil, err
	}
	return &Authorizer{enforcer: enforcer}, nil
}

// Can reports whether ANY of roles grants act on obj. No roles means no
// permissions.
func (a *Authorizer) Can(roles []string, obj, act string) (bool, error) {
	if a == nil || a.enforcer == nil {
		return false, fmt.Errorf("casbin enforcer not initialized")
	}
	for _, role := range roles {
		allowed, err := a.enforcer.Enforce(auth.RoleID(role), obj, act)
		if err != nil {
			return false, fmt.Errorf("enforce %s %s on %s: %w", role, act, obj, err)
		}
		if allowed {
			return true, nil
		}
	}
	return false, nil
}

// Capabilities summarises what a role set may do, for the user info payload.
type Capabilities struct {
	CanManageFeeds      bool `json:"can_manage_feeds"`
	CanManageCategories bool `json:"can_manage_categories"`
	CanManageUsers      bool `json:"can_manage_users"`
}

// Capabilities evaluates the manage permission on every object.
func (a *Authorizer) Capabilities(roles []string) (Capabilities, error) {
	var caps Capabilities
	var err error
	if caps.CanManageFeeds, err = a.Can(roles, auth.ObjectFeeds, auth.ActionManage); err != nil {
		return caps, err
	}
	if caps.CanManageCategories, err = a.Can(roles, auth.ObjectCategories, auth.ActionManage); err != nil {
		return caps, err
	}
	if caps.CanManageUsers, err = a.Can(roles, auth.ObjectUsers, auth.ActionManage); err != nil {
		return caps, err
	}
	return caps, nil
}
