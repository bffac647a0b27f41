package env

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetFallsBackOnBlank(t *testing.T) {
	t.Setenv("GROCERYMART_TEST_VALUE", "   ")
	assert.Equal(t, "fallback", Get("GROCERYMART_TEST_VALUE", "fallback"))

	t.Setenv("GROCERYMART_TEST_VALUE", " set ")
	assert.Equal(t, "set", Get("GROCERYMART_TEST_VALUE", "fallback"))
}

func TestInstanceIDPrefersWorkerID(t *testing.T) {
	t.Setenv("GROCERYMART_INSTANCE_ID", "cron-7")
	assert.Equal(t, "cron-7", InstanceID())
}
