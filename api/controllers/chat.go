package controllers

import (
	"net/http"

	"github.com/angelmondragon/grocerymart-backend/api/middleware"
	"github.com/angelmondragon/grocerymart-backend/api/responses"
	"github.com/angelmondragon/grocerymart-backend/api/validators"
	"github.com/angelmondragon/grocerymart-backend/internal/chat"
	pkgerrors "github.com/angelmondragon/grocerymart-backend/pkg/errors"
	"github.com/angelmondragon/grocerymart-backend/pkg/logger"
)

type chatRequest struct {
	Message string `json:"message" validate:"required"`
}

// ChatReply answers one shopper message. Upstream failures still return 200 with fallback=true.
func ChatReply(svc chat.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "chat service unavailable"))
			return
		}
		userID, err := middleware.RequireUserID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body chatRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		reply, err := svc.Reply(r.Context(), userID, body.Message)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, reply)
	}
}
