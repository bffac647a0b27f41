package middleware

import (
	"context"
	"net/http"

	"github.com/angelmondragon/grocerymart-backend/api/responses"
	"github.com/angelmondragon/grocerymart-backend/api/validators"
	"github.com/angelmondragon/grocerymart-backend/pkg/auth"
	"github.com/angelmondragon/grocerymart-backend/pkg/auth/session"
	"github.com/angelmondragon/grocerymart-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/grocerymart-backend/pkg/errors"
	"github.com/angelmondragon/grocerymart-backend/pkg/logger"
)

// Auth requires a bearer access token whose session is still live, then
// attaches the caller as a Principal. A nil sessions checker skips the
// revocation lookup.
func Auth(cfg config.JWTConfig, sessions session.AccessSessionChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := authenticate(r, cfg, sessions)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			ctx := WithPrincipal(r.Context(), principal)
			if logg != nil {
				ctx = logg.WithFields(ctx, map[string]any{
					"user_id":    principal.UserID.String(),
					"actor_role": string(principal.Role),
				})
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func authenticate(r *http.Request, cfg config.JWTConfig, sessions session.AccessSessionChecker) (Principal, error) {
	raw, err := validators.BearerToken(r)
	if err != nil {
		return Principal{}, err
	}
	claims, err := auth.ParseAccessToken(cfg, raw)
	if err != nil {
		return Principal{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}
	if claims.ID == "" {
		return Principal{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "token has no session id")
	}
	if err := checkSession(r.Context(), sessions, claims.ID); err != nil {
		return Principal{}, err
	}
	return Principal{UserID: claims.UserID, Role: claims.Role, AccessID: claims.ID}, nil
}

// checkSession rejects tokens whose refresh session was revoked by logout.
func checkSession(ctx context.Context, sessions session.AccessSessionChecker, accessID string) error {
	if sessions == nil {
		return nil
	}
	live, err := sessions.HasSession(ctx, accessID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "session lookup failed")
	}
	if !live {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "session revoked")
	}
	return nil
}
