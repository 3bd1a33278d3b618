// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

/*
Package access provides utilities for access control.

An Identity is resolved from a bearer token by the middleware returned by
NewBearerMiddleware and stored in the request context. Handlers retrieve it
with IdentityFromContext and check it against an entity's role requirements
with Authorize before they touch the database.
*/
package access

import (
	"context"
	"time"

	"github.com/relabs-tech/gourd/core"
	"github.com/relabs-tech/gourd/core/failure"
	"github.com/relabs-tech/gourd/core/model"
)

// AdminRole satisfies every role requirement
const AdminRole = "admin"

// contextKey is the type for context keys. Go linter does not like plain strings
type contextKey string

// the predefined context key
const (
	contextKeyIdentity contextKey = "_identity_"
)

// Identity is the authenticated caller of a request. It is derived from a
// verified token and never persisted.
type Identity struct {
	Subject   string    `json:"id"`
	Roles     []string  `json:"roles"`
	ExpiresAt time.Time `json:"-"`
}

// HasRole returns true if the identity contains the requested role;
// otherwise it returns false.
func (i *Identity) HasRole(role string) bool {
	if i == nil {
		return false
	}
	for _, hasRole := range i.Roles {
		if role == hasRole {
			return true
		}
	}
	return false
}

// ContextWithIdentity returns a new context with the identity added to it
func ContextWithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, contextKeyIdentity, identity)
}

// IdentityFromContext retrieves an identity from the context. It returns nil
// for anonymous requests.
func IdentityFromContext(ctx context.Context) *Identity {
	i, ok := ctx.Value(contextKeyIdentity).(*Identity)
	if ok {
		return i
	}
	return nil
}

// Allowed returns true if identity satisfies requirement. An empty requirement
// is satisfied by everybody, including anonymous callers. The admin role
// satisfies any requirement.
func Allowed(requirement string, identity *Identity) bool {
	if requirement == "" {
		return true
	}
	return identity.HasRole(AdminRole) || identity.HasRole(requirement)
}

// Requirement returns the role requirement for operation. Create shares the
// update requirement, list shares the read requirement.
func Requirement(roles model.RoleRequirements, operation core.Operation) string {
	switch operation {
	case core.OperationRead, core.OperationList:
		return roles.Read
	case core.OperationCreate, core.OperationUpdate:
		return roles.Update
	case core.OperationDelete:
		return roles.Delete
	}
	return AdminRole
}

// Authorize checks identity against the requirement for operation. It returns
// an authentication failure if a role is required and the request is anonymous,
// and an authorization failure if the identity lacks the role.
func Authorize(roles model.RoleRequirements, operation core.Operation, identity *Identity) error {
	requirement := Requirement(roles, operation)
	if Allowed(requirement, identity) {
		return nil
	}
	if identity == nil {
		return failure.Newf(failure.TypeAuthentication, "%s requires authentication", operation)
	}
	return failure.Newf(failure.TypeAuthorization, "%s requires role %s", operation, requirement)
}
