package controllers

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/grocerymart-backend/api/responses"
	"github.com/angelmondragon/grocerymart-backend/api/validators"
	product "github.com/angelmondragon/grocerymart-backend/internal/products"
	pkgerrors "github.com/angelmondragon/grocerymart-backend/pkg/errors"
	"github.com/angelmondragon/grocerymart-backend/pkg/logger"
	"github.com/angelmondragon/grocerymart-backend/pkg/types"
)

const maxSearchLength = 100

// ListProducts serves the public catalog with optional filters:
// category, q, featured, organic, bestseller, in_stock, min_price, max_price.
func ListProducts(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		query, err := parseProductListQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.List(r.Context(), query)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func parseProductListQuery(r *http.Request) (product.ListQuery, error) {
	q := r.URL.Query()
	filter := product.ListFilter{
		Category: validators.QueryText(q.Get("category"), maxSearchLength),
		Search:   validators.QueryText(q.Get("q"), maxSearchLength),
	}

	var err error
	flags := []struct {
		key  string
		dest **bool
	}{
		{"featured", &filter.Featured},
		{"organic", &filter.Organic},
		{"bestseller", &filter.Bestseller},
		{"in_stock", &filter.InStock},
	}
	for _, flag := range flags {
		if *flag.dest, err = validators.ParseQueryBool(r, flag.key); err != nil {
			return product.ListQuery{}, err
		}
	}
	if filter.MinPriceCents, err = validators.ParseQueryMoney(r, "min_price"); err != nil {
		return product.ListQuery{}, err
	}
	if filter.MaxPriceCents, err = validators.ParseQueryMoney(r, "max_price"); err != nil {
		return product.ListQuery{}, err
	}
	if filter.MinPriceCents != nil && filter.MaxPriceCents != nil && *filter.MinPriceCents > *filter.MaxPriceCents {
		return product.ListQuery{}, pkgerrors.New(pkgerrors.CodeValidation, "min_price must not exceed max_price")
	}

	page, err := validators.ParsePagination(r)
	if err != nil {
		return product.ListQuery{}, err
	}
	return product.ListQuery{Filter: filter, Cursor: page.Cursor, Limit: page.Limit}, nil
}

func GetProduct(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dto, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

func ProductRecommendations(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		items, err := svc.Recommendations(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"items": items})
	}
}

func ProductCategories(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}
		categories, err := svc.Categories(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"categories": categories})
	}
}

type createProductRequest struct {
	Name         string       `json:"name" validate:"required,max=200"`
	Description  *string      `json:"description,omitempty"`
	Category     string       `json:"category" validate:"required,max=100"`
	Subcategory  *string      `json:"subcategory,omitempty"`
	Price        types.Money  `json:"price" validate:"gt=0"`
	SalePrice    *types.Money `json:"sale_price,omitempty"`
	Stock        int          `json:"stock" validate:"min=0"`
	ImageURL     *string      `json:"image_url,omitempty" validate:"omitempty,url"`
	IsFeatured   bool         `json:"is_featured"`
	IsBestseller bool         `json:"is_bestseller"`
	IsOrganic    bool         `json:"is_organic"`
}

func (p createProductRequest) toInput() product.CreateInput {
	return product.CreateInput{
		Name:           strings.TrimSpace(p.Name),
		Description:    p.Description,
		Category:       strings.TrimSpace(p.Category),
		Subcategory:    p.Subcategory,
		PriceCents:     p.Price.Cents(),
		SalePriceCents: moneyCents(p.SalePrice),
		Stock:          p.Stock,
		ImageURL:       p.ImageURL,
		IsFeatured:     p.IsFeatured,
		IsBestseller:   p.IsBestseller,
		IsOrganic:      p.IsOrganic,
	}
}

type updateProductRequest struct {
	Name         *string                     `json:"name,omitempty" validate:"omitempty,max=200"`
	Description  *string                     `json:"description,omitempty"`
	Category     *string                     `json:"category,omitempty" validate:"omitempty,max=100"`
	Subcategory  *string                     `json:"subcategory,omitempty"`
	Price        *types.Money                `json:"price,omitempty"`
	// An explicit null removes the sale price.
	SalePrice    types.Nullable[types.Money] `json:"sale_price"`
	Stock        *int                        `json:"stock,omitempty"`
	ImageURL     *string                     `json:"image_url,omitempty"`
	IsFeatured   *bool                       `json:"is_featured,omitempty"`
	IsBestseller *bool                       `json:"is_bestseller,omitempty"`
	IsOrganic    *bool                       `json:"is_organic,omitempty"`
}

func (p updateProductRequest) toInput() product.UpdateInput {
	return product.UpdateInput{
		Name:           p.Name,
		Description:    p.Description,
		Category:       p.Category,
		Subcategory:    p.Subcategory,
		PriceCents:     moneyCents(p.Price),
		SalePriceCents: moneyCents(p.SalePrice.Value),
		ClearSalePrice: p.SalePrice.IsNull(),
		Stock:          p.Stock,
		ImageURL:       p.ImageURL,
		IsFeatured:     p.IsFeatured,
		IsBestseller:   p.IsBestseller,
		IsOrganic:      p.IsOrganic,
	}
}

func moneyCents(m *types.Money) *int64 {
	if m == nil {
		return nil
	}
	cents := m.Cents()
	return &cents
}

func AdminCreateProduct(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		var payload createProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dto, err := svc.Create(r.Context(), payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, dto)
	}
}

func AdminUpdateProduct(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dto, err := svc.Update(r.Context(), id, payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

func AdminDeleteProduct(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "productId")
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
