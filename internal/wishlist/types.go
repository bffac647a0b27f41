package wishlist

import (
	"time"

	"github.com/google/uuid"

	product "github.com/angelmondragon/grocerymart-backend/internal/products"
	"github.com/angelmondragon/grocerymart-backend/pkg/types"
)

// WishlistItemDTO wraps the product summary included in a wishlist row.
type WishlistItemDTO struct {
	Product   product.ProductDTO `json:"product"`
	CreatedAt time.Time          `json:"created_at"`
}

// WishlistItemsPageDTO returns a cursor-paginated wishlist view.
type WishlistItemsPageDTO = types.ListResult[WishlistItemDTO]

// WishlistIDsDTO lists saved product ids so product cards can render the toggle state.
type WishlistIDsDTO struct {
	ProductIDs []uuid.UUID `json:"product_ids"`
	Total      int         `json:"total"`
}
