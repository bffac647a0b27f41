package controllers

import (
	"net/http"
	"time"

	"github.com/angelmondragon/grocerymart-backend/api/middleware"
	"github.com/angelmondragon/grocerymart-backend/api/responses"
	"github.com/angelmondragon/grocerymart-backend/api/validators"
	"github.com/angelmondragon/grocerymart-backend/internal/offers"
	pkgerrors "github.com/angelmondragon/grocerymart-backend/pkg/errors"
	"github.com/angelmondragon/grocerymart-backend/pkg/logger"
	"github.com/angelmondragon/grocerymart-backend/pkg/outbox"
)

type offerRequest struct {
	Title           string     `json:"title" validate:"required,max=200"`
	Description     *string    `json:"description,omitempty"`
	DiscountPercent *int       `json:"discount_percent,omitempty" validate:"omitempty,min=0,max=100"`
	CouponCode      *string    `json:"coupon_code,omitempty" validate:"omitempty,max=40"`
	ValidFrom       *time.Time `json:"valid_from,omitempty"`
	ValidUntil      *time.Time `json:"valid_until,omitempty"`
	IsActive        *bool      `json:"is_active,omitempty"`
}

type offerUpdateRequest struct {
	Title           *string    `json:"title,omitempty" validate:"omitempty,max=200"`
	Description     *string    `json:"description,omitempty"`
	DiscountPercent *int       `json:"discount_percent,omitempty" validate:"omitempty,min=0,max=100"`
	ClearDiscount   bool       `json:"clear_discount"`
	CouponCode      *string    `json:"coupon_code,omitempty" validate:"omitempty,max=40"`
	ValidFrom       *time.Time `json:"valid_from,omitempty"`
	ValidUntil      *time.Time `json:"valid_until,omitempty"`
	ClearValidity   bool       `json:"clear_validity"`
	IsActive        *bool      `json:"is_active,omitempty"`
}

// ListActiveOffers is the storefront banner feed.
func ListActiveOffers(svc offers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "offers service unavailable"))
			return
		}
		items, err := svc.ListActive(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"items": items})
	}
}

func AdminListOffers(svc offers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "offers service unavailable"))
			return
		}
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.ListAll(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func AdminGetOffer(svc offers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "offers service unavailable"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "offerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		offer, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, offer)
	}
}

// AdminCreateOffer stores the offer; offer_created fans out "New Offer!" notifications.
func AdminCreateOffer(svc offers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "offers service unavailable"))
			return
		}
		adminID, err := middleware.RequireUserID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body offerRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		active := true
		if body.IsActive != nil {
			active = *body.IsActive
		}

		actor := outbox.ActorRef{UserID: adminID, Role: middleware.RoleFromContext(r.Context())}
		offer, err := svc.Create(r.Context(), actor, offers.CreateInput{
			Title:           body.Title,
			Description:     body.Description,
			DiscountPercent: body.DiscountPercent,
			CouponCode:      body.CouponCode,
			ValidFrom:       body.ValidFrom,
			ValidUntil:      body.ValidUntil,
			IsActive:        active,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, offer)
	}
}

func AdminUpdateOffer(svc offers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "offers service unavailable"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "offerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body offerUpdateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		offer, err := svc.Update(r.Context(), id, offers.UpdateInput{
			Title:           body.Title,
			Description:     body.Description,
			DiscountPercent: body.DiscountPercent,
			ClearDiscount:   body.ClearDiscount,
			CouponCode:      body.CouponCode,
			ValidFrom:       body.ValidFrom,
			ValidUntil:      body.ValidUntil,
			ClearValidity:   body.ClearValidity,
			IsActive:        body.IsActive,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, offer)
	}
}

func AdminDeleteOffer(svc offers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "offers service unavailable"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "offerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"deleted": true})
	}
}
