// Package testutil provides test helpers for setting up in-memory caches,
// creating fixtures, and making assertions.
package testutil

import (
	"fmt"
	"testing"

	"github.com/google/uuid"

	"moneta/internal/cache"
)

// SetupTestCache creates a uniquely named in-memory SQLite cache with the
// schema migrated. The shared cache keeps the database alive across the
// connections in GORM's pool.
func SetupTestCache(t *testing.T) *cache.Cache {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	c, err := cache.Open(dsn)
	if err != nil {
		t.Fatalf("failed to open test cache: %v", err)
	}

	t.Cleanup(func() {
		if err := c.Close(); err != nil {
			t.Errorf("failed to close test cache: %v", err)
		}
	})
	return c
}
