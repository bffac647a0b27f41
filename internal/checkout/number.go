package checkout

import (
	"fmt"
	"math/rand/v2"
	"time"
)

const orderNumberPrefix = "GM"

// NewOrderNumber renders GM, the UTC second, and six random digits.
// Collisions are caught by the unique index and retried.
func NewOrderNumber(now time.Time) string {
	return fmt.Sprintf("%s%s%06d", orderNumberPrefix, now.UTC().Format("20060102150405"), rand.IntN(1_000_000))
}
