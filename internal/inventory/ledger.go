// Package inventory keeps Product.quantity equal to the stock available for new
// rentals. Every adjustment is one conditional UPDATE so concurrent orders for the
// same product cannot lose updates.
package inventory

import (
	"context"
	"errors"
	"sort"
	"time"

	"rental-service/internal/apperror"
	"rental-service/internal/model"
	"rental-service/prometheus"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Movement is a quantity of one product to reserve or release
type Movement struct {
	ProductID uuid.UUID
	Quantity  int
}

// Tally counts the units a transaction reserved and released. Callers Record it
// only after the transaction commits so rolled back movements are never reported.
type Tally struct {
	Reserved int
	Released int
}

// Record reports the tallied units to the stock movement metric
func (t *Tally) Record() {
	if t.Reserved > 0 {
		prometheus.RecordStockMovement("reserve", t.Reserved)
	}
	if t.Released > 0 {
		prometheus.RecordStockMovement("release", t.Released)
	}
}

// Ledger adjusts product stock through the bound database handle
type Ledger struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewLedger creates a ledger bound to db
func NewLedger(db *gorm.DB, log *zap.Logger) *Ledger {
	return &Ledger{db: db, log: log}
}

// WithTx returns a ledger whose updates run inside tx
func (l *Ledger) WithTx(tx *gorm.DB) *Ledger {
	return &Ledger{db: tx, log: l.log}
}

// Reserve takes quantity units of a product out of available stock. The update is
// rejected, never clamped, when stock would go negative.
func (l *Ledger) Reserve(ctx context.Context, productID uuid.UUID, quantity int) error {
	if quantity <= 0 {
		return apperror.Validation("reserve quantity must be greater than 0")
	}
	defer prometheus.TrackDBOperation("reserve_stock")(time.Now())

	result := l.db.WithContext(ctx).
		Model(&model.Product{}).
		Where("id = ? AND quantity >= ?", productID, quantity).
		Update("quantity", gorm.Expr("quantity - ?", quantity))
	if result.Error != nil {
		return apperror.Persistence("reserve stock", result.Error)
	}

	if result.RowsAffected == 0 {
		available, err := l.Available(ctx, productID)
		if err != nil {
			return err
		}
		l.log.Warn("Stock reservation rejected",
			zap.String("product_id", productID.String()),
			zap.Int("available", available),
			zap.Int("requested", quantity))
		return apperror.InsufficientStock(productID, available, quantity)
	}

	l.log.Debug("Stock reserved",
		zap.String("product_id", productID.String()),
		zap.Int("quantity", quantity))
	return nil
}

// Release puts quantity units of a product back into available stock
func (l *Ledger) Release(ctx context.Context, productID uuid.UUID, quantity int) error {
	if quantity <= 0 {
		return apperror.Validation("release quantity must be greater than 0")
	}
	defer prometheus.TrackDBOperation("release_stock")(time.Now())

	result := l.db.WithContext(ctx).
		Model(&model.Product{}).
		Where("id = ?", productID).
		Update("quantity", gorm.Expr("quantity + ?", quantity))
	if result.Error != nil {
		return apperror.Persistence("release stock", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperror.NotFound("product", productID)
	}

	l.log.Debug("Stock released",
		zap.String("product_id", productID.String()),
		zap.Int("quantity", quantity))
	return nil
}

// ReserveAll reserves every movement. Callers run it inside a transaction so a
// rejected movement rolls back the ones before it.
func (l *Ledger) ReserveAll(ctx context.Context, movements []Movement) error {
	for _, m := range Merge(movements) {
		if err := l.Reserve(ctx, m.ProductID, m.Quantity); err != nil {
			return err
		}
	}
	return nil
}

// ReleaseAll releases every movement
func (l *Ledger) ReleaseAll(ctx context.Context, movements []Movement) error {
	for _, m := range Merge(movements) {
		if err := l.Release(ctx, m.ProductID, m.Quantity); err != nil {
			return err
		}
	}
	return nil
}

// Available returns the current available stock of a product
func (l *Ledger) Available(ctx context.Context, productID uuid.UUID) (int, error) {
	var product model.Product
	err := l.db.WithContext(ctx).Select("id", "quantity").First(&product, "id = ?", productID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, apperror.NotFound("product", productID)
	}
	if err != nil {
		return 0, apperror.Persistence("load product stock", err)
	}
	return product.Quantity, nil
}

// Merge sums movements per product, drops non-positive totals and orders the result
// by product id so concurrent transactions touch rows in the same order.
func Merge(movements []Movement) []Movement {
	totals := make(map[uuid.UUID]int, len(movements))
	for _, m := range movements {
		totals[m.ProductID] += m.Quantity
	}

	merged := make([]Movement, 0, len(totals))
	for id, qty := range totals {
		if qty > 0 {
			merged = append(merged, Movement{ProductID: id, Quantity: qty})
		}
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].ProductID.String() < merged[j].ProductID.String()
	})
	return merged
}

// Total sums the positive quantities of movements
func Total(movements []Movement) int {
	total := 0
	for _, m := range movements {
		if m.Quantity > 0 {
			total += m.Quantity
		}
	}
	return total
}

// Outstanding converts order items into the movements still held by them
func Outstanding(items []model.OrderItem) []Movement {
	movements := make([]Movement, 0, len(items))
	for i := range items {
		movements = append(movements, Movement{
			ProductID: items[i].ProductID,
			Quantity:  items[i].Outstanding(),
		})
	}
	return movements
}
