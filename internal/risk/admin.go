package risk

import (
	"sync"

	"citadel/pkg/errors"
)

// Admin actions guarded by the role check
const (
	ActionRecoverBreaker = "breaker:recover"
	ActionSetEmergency   = "breaker:emergency"
	ActionConfigureFeed  = "oracle:configure"
)

// Authorizer checks whether an actor may perform an admin action
type Authorizer interface {
	Authorize(actor, action string) error
}

// RoleACL is a static role/ACL-checked authorizer: each actor carries a set
// of granted actions
type RoleACL struct {
	mu     sync.RWMutex
	grants map[string]map[string]bool
}

// NewRoleACL creates an empty ACL
func NewRoleACL() *RoleACL {
	return &RoleACL{grants: make(map[string]map[string]bool)}
}

// Grant allows an actor to perform an action
func (a *RoleACL) Grant(actor string, actions ...string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.grants[actor] == nil {
		a.grants[actor] = make(map[string]bool)
	}
	for _, action := range actions {
		a.grants[actor][action] = true
	}
}

// Revoke removes an actor's grant for an action
func (a *RoleACL) Revoke(actor, action string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.grants[actor], action)
}

// Authorize implements Authorizer
func (a *RoleACL) Authorize(actor, action string) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.grants[actor][action] {
		return nil
	}
	return errors.Wrapf(errors.ErrUnauthorized, "actor %s lacks %s", actor, action)
}
