// Package dbtest opens throwaway sqlite databases for package tests.
package dbtest

import (
	"fmt"
	"regexp"
	"testing"

	"mobility-challenge/common"

	"gorm.io/gorm"
)

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_]`)

// Open returns an in-memory database private to t with models migrated.
// The database is closed when the test finishes.
func Open(t testing.TB, models ...interface{}) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", unsafeName.ReplaceAllString(t.Name(), "_"))
	db, err := common.Init(common.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("test database handle: %v", err)
	}
	// a single connection keeps the shared in-memory database alive and
	// serialises writers
	sqlDB.SetMaxOpenConns(1)

	if len(models) > 0 {
		if err := db.AutoMigrate(models...); err != nil {
			t.Fatalf("migrate test database: %v", err)
		}
	}

	t.Cleanup(func() {
		_ = common.Close(db)
	})
	return db
}
