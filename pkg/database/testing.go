package database

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// NewTestDB opens a private in-memory SQLite database migrated for models.
// It is closed when the test finishes.
func NewTestDB(tb testing.TB, models ...interface{}) *gorm.DB {
	tb.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(tb.Name())
	dsn := fmt.Sprintf("file:%s_%s?mode=memory&cache=shared", name, uuid.NewString()[:8])

	db, err := Open("sqlite", dsn, zap.NewNop())
	if err != nil {
		tb.Fatalf("open test database: %v", err)
	}
	if err := Migrate(db, models...); err != nil {
		tb.Fatalf("migrate test database: %v", err)
	}
	tb.Cleanup(func() { _ = Close(db) })
	return db
}
