package migrate_test

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/grocerymart-backend/pkg/migrate"
)

func TestMigrationsDirIsValid(t *testing.T) {
	require.NoError(t, migrate.ValidateDir("migrations"))
	require.NoError(t, migrate.ValidateFS(migrate.Embedded()))
}

func TestEmbeddedMatchesDisk(t *testing.T) {
	onDisk, err := filepath.Glob(filepath.Join("migrations", "*.sql"))
	require.NoError(t, err)
	embedded, err := fs.Glob(migrate.Embedded(), "*.sql")
	require.NoError(t, err)
	assert.Len(t, embedded, len(onDisk))
}

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	return string(data)
}

func TestCartMigrationEnforcesOneLinePerProduct(t *testing.T) {
	content := readMigration(t, "create_cart_items")
	assert.Contains(t, content, "CONSTRAINT cart_items_user_product_key UNIQUE (user_id, product_id)")
	assert.Contains(t, content, "CHECK (quantity > 0)")
}

func TestOrdersMigrationKeepsSnapshots(t *testing.T) {
	content := readMigration(t, "create_orders")
	checks := []string{
		"CONSTRAINT orders_order_number_key UNIQUE (order_number)",
		"total_cents = subtotal_cents + delivery_fee_cents + tax_cents - discount_cents",
		"product_id uuid REFERENCES products(id) ON DELETE SET NULL",
		"CREATE TYPE order_status AS ENUM ('confirmed', 'packed', 'shipped', 'delivered', 'cancelled')",
	}
	for _, sub := range checks {
		assert.True(t, strings.Contains(content, sub), "missing %q", sub)
	}
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Product Tags!")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "_add_product_tags.sql"))
	require.NoError(t, migrate.ValidateDir(dir))

	second, err := migrate.CreateSQLMigration(dir, "add product tags index")
	require.NoError(t, err)
	assert.Less(t, filepath.Base(path), filepath.Base(second), "versions keep increasing within one second")
	require.NoError(t, migrate.ValidateDir(dir))

	_, err = migrate.CreateSQLMigration(dir, "!!!")
	require.Error(t, err)
}

func TestValidateDirRejectsBadNames(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "001_init.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644))
	require.Error(t, migrate.ValidateDir(dir))

	require.Error(t, migrate.ValidateDir(t.TempDir()))
}
