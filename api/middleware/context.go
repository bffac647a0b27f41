package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/grocerymart-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/grocerymart-backend/pkg/errors"
)

// Principal is the caller identity established by Auth.
type Principal struct {
	UserID   uuid.UUID
	Role     enums.SystemRole
	AccessID string
}

type principalKey struct{}

// WithPrincipal stores p on ctx, replacing any earlier identity.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext reports false on unauthenticated routes.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// UserIDFromContext returns "" when no user is attached.
func UserIDFromContext(ctx context.Context) string {
	if p, ok := PrincipalFromContext(ctx); ok && p.UserID != uuid.Nil {
		return p.UserID.String()
	}
	return ""
}

func RoleFromContext(ctx context.Context) string {
	p, _ := PrincipalFromContext(ctx)
	return string(p.Role)
}

func AccessIDFromContext(ctx context.Context) string {
	p, _ := PrincipalFromContext(ctx)
	return p.AccessID
}

// WithUserID sets only the user on the current principal. An unparsable id
// leaves the user unset.
func WithUserID(ctx context.Context, userID string) context.Context {
	p, _ := PrincipalFromContext(ctx)
	p.UserID, _ = uuid.Parse(userID)
	return WithPrincipal(ctx, p)
}

// WithRole sets only the role on the current principal.
func WithRole(ctx context.Context, role string) context.Context {
	p, _ := PrincipalFromContext(ctx)
	p.Role = enums.SystemRole(role)
	return WithPrincipal(ctx, p)
}

// RequireUserID fails with 401 when the route was mounted without Auth.
func RequireUserID(ctx context.Context) (uuid.UUID, error) {
	p, ok := PrincipalFromContext(ctx)
	if !ok || p.UserID == uuid.Nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	return p.UserID, nil
}
