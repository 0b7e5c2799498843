package domain

import "context"

// Actor is the authorization context of a ledger call.
type Actor struct {
	ID   string
	Role Role
}

// Role represents an actor's authority over trust funds.
type Role string

const (
	// RoleStandard may record transactions but can never overdraw an account.
	RoleStandard Role = "standard"

	// RoleOverride may authorize a negative balance; every such write is flagged as a shortfall.
	RoleOverride Role = "override"

	// RoleViewer can only read balances, history and reconciliation results.
	RoleViewer Role = "viewer"
)

var validRoles = map[Role]bool{
	RoleStandard: true,
	RoleOverride: true,
	RoleViewer:   true,
}

// IsValid checks if the role is a known role.
func (r Role) IsValid() bool {
	return validRoles[r]
}

// CanWrite reports whether the role may record transactions.
func (r Role) CanWrite() bool {
	return r == RoleStandard || r == RoleOverride
}

// CanOverdraw reports whether the role may drive a balance below zero.
func (r Role) CanOverdraw() bool {
	return r == RoleOverride
}

// Validate checks that the actor is identified and carries a usable role.
func (a *Actor) Validate() error {
	if a == nil || a.ID == "" {
		return ErrUnauthorized
	}
	if !a.Role.IsValid() {
		return ErrUnauthorized
	}
	return nil
}

type actorContextKey struct{}

// ContextWithActor attaches the acting principal to ctx.
func ContextWithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext returns the acting principal, if any.
func ActorFromContext(ctx context.Context) (*Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(*Actor)
	return actor, ok && actor != nil
}
