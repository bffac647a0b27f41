package middleware

import (
	"net/http"
	"slices"

	"github.com/angelmondragon/grocerymart-backend/api/responses"
	"github.com/angelmondragon/grocerymart-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/grocerymart-backend/pkg/errors"
	"github.com/angelmondragon/grocerymart-backend/pkg/logger"
)

// RequireRole admits requests whose token role exactly matches one of roles.
// It must run after Auth.
func RequireRole(logg *logger.Logger, roles ...enums.SystemRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := enums.SystemRole(RoleFromContext(r.Context()))
			if !slices.Contains(roles, role) {
				if logg != nil {
					logg.Warn(logg.WithField(r.Context(), "actor_role", string(role)), "role check failed")
				}
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "insufficient role"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
