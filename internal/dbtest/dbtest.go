// Package dbtest opens migrated in-memory sqlite databases for package tests.
package dbtest

import (
	"fmt"
	"strings"
	"testing"

	"rental-service/internal/model"
	"rental-service/pkg/database"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open returns a fresh migrated database private to the test
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%s?mode=memory&cache=shared&_foreign_keys=1", name, uuid.NewString()[:8])

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	// one connection keeps the in-memory database alive and serializes transactions
	sqlDB.SetMaxOpenConns(1)

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// Product inserts a product with the given stock and daily rate
func Product(t testing.TB, db *gorm.DB, name string, quantity int, rate string) *model.Product {
	t.Helper()
	p := &model.Product{
		Name:     name,
		Quantity: quantity,
		Rate:     decimal.RequireFromString(rate),
		RateUnit: model.RateUnitDay,
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("create product: %v", err)
	}
	return p
}

// Customer inserts a customer
func Customer(t testing.TB, db *gorm.DB, name string) *model.Customer {
	t.Helper()
	c := &model.Customer{Name: name, Phone: "9000000000", Address: "12 Market Road"}
	if err := db.Create(c).Error; err != nil {
		t.Fatalf("create customer: %v", err)
	}
	return c
}

// Vehicle inserts a vehicle
func Vehicle(t testing.TB, db *gorm.DB, number string) *model.Vehicle {
	t.Helper()
	v := &model.Vehicle{Number: number}
	if err := db.Create(v).Error; err != nil {
		t.Fatalf("create vehicle: %v", err)
	}
	return v
}

// Stock reads the current available quantity of a product
func Stock(t testing.TB, db *gorm.DB, productID uuid.UUID) int {
	t.Helper()
	var p model.Product
	if err := db.First(&p, "id = ?", productID).Error; err != nil {
		t.Fatalf("load product: %v", err)
	}
	return p.Quantity
}

// PostgresDryRun returns a postgres handle that renders SQL without connecting, for
// asserting on statements sqlite cannot express such as row locks
func PostgresDryRun(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN: "host=localhost port=5432 user=rental dbname=rental sslmode=disable",
	}), &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
		Logger:               logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open postgres dry run: %v", err)
	}
	return db
}
