// Package returns records rented goods coming back and restores their stock.
package returns

import (
	"context"
	"sort"
	"time"

	"rental-service/internal/apperror"
	"rental-service/internal/inventory"
	"rental-service/internal/model"
	"rental-service/prometheus"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Entry is one returned line of a submission
type Entry struct {
	OrderItemID string `json:"orderItemId"`
	ProductID   string `json:"productId"`
	Quantity    int    `json:"quantity"`
}

// Released is the stock restored for one product
type Released struct {
	ProductID uuid.UUID `json:"productId"`
	Quantity  int       `json:"quantity"`
}

// Summary reports what a submission restored
type Summary struct {
	ReleasedUnits int        `json:"releasedUnits"`
	Products      []Released `json:"products"`
}

// Processor applies return submissions
type Processor struct {
	db     *gorm.DB
	ledger *inventory.Ledger
	log    *zap.Logger
}

// NewProcessor creates a return processor
func NewProcessor(db *gorm.DB, ledger *inventory.Ledger, log *zap.Logger) *Processor {
	return &Processor{db: db, ledger: ledger, log: log}
}

type itemReturn struct {
	id       uuid.UUID
	product  *uuid.UUID
	quantity int
}

// Process validates every entry against the outstanding quantity of its order item
// and applies all of them in one transaction. Any rejected entry rejects the whole
// submission.
func (p *Processor) Process(ctx context.Context, entries []Entry) (*Summary, error) {
	if len(entries) == 0 {
		return nil, apperror.Validation("returns must not be empty")
	}
	requests, err := collect(entries)
	if err != nil {
		return nil, err
	}

	defer prometheus.TrackDBOperation("process_returns")(time.Now())

	summary := &Summary{Products: []Released{}}
	err = p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		items, err := lockItems(tx, requests)
		if err != nil {
			return err
		}

		var movements []inventory.Movement
		for _, r := range requests {
			item := items[r.id]
			if err := check(item, r); err != nil {
				return err
			}
			if r.quantity == 0 {
				continue
			}

			result := tx.Model(&model.OrderItem{}).
				Where("id = ? AND returned_quantity + ? <= quantity", item.ID, r.quantity).
				Update("returned_quantity", gorm.Expr("returned_quantity + ?", r.quantity))
			if result.Error != nil {
				return apperror.Persistence("record return", result.Error)
			}
			if result.RowsAffected == 0 {
				return apperror.Validation("return quantity %d exceeds outstanding quantity for order item %s", r.quantity, item.ID)
			}
			movements = append(movements, inventory.Movement{ProductID: item.ProductID, Quantity: r.quantity})
		}

		merged := inventory.Merge(movements)
		if err := p.ledger.WithTx(tx).ReleaseAll(ctx, merged); err != nil {
			return err
		}
		for _, m := range merged {
			summary.ReleasedUnits += m.Quantity
			summary.Products = append(summary.Products, Released{ProductID: m.ProductID, Quantity: m.Quantity})
		}
		return nil
	})
	prometheus.RecordOperation("return", err)
	if err != nil {
		p.log.Warn("Return submission rejected", zap.Int("entries", len(entries)), zap.Error(err))
		return nil, apperror.Wrap("process returns", err)
	}

	prometheus.RecordReturnedUnits(summary.ReleasedUnits)
	moved := inventory.Tally{Released: summary.ReleasedUnits}
	moved.Record()
	p.log.Info("Returns processed",
		zap.Int("entries", len(entries)),
		zap.Int("released_units", summary.ReleasedUnits))
	return summary, nil
}

// collect parses entries and sums quantities per order item
func collect(entries []Entry) ([]itemReturn, error) {
	byItem := make(map[uuid.UUID]*itemReturn, len(entries))
	for _, e := range entries {
		if e.Quantity < 0 {
			return nil, apperror.Validation("return quantity must be >= 0")
		}
		id, err := uuid.Parse(e.OrderItemID)
		if err != nil {
			return nil, apperror.Validation("invalid orderItemId: %s", e.OrderItemID)
		}

		var product *uuid.UUID
		if e.ProductID != "" {
			pid, err := uuid.Parse(e.ProductID)
			if err != nil {
				return nil, apperror.Validation("invalid productId: %s", e.ProductID)
			}
			product = &pid
		}

		r, ok := byItem[id]
		if !ok {
			r = &itemReturn{id: id}
			byItem[id] = r
		}
		if product != nil {
			if r.product != nil && *r.product != *product {
				return nil, apperror.Validation("conflicting productId for order item %s", id)
			}
			r.product = product
		}
		r.quantity += e.Quantity
	}

	requests := make([]itemReturn, 0, len(byItem))
	for _, r := range byItem {
		requests = append(requests, *r)
	}
	sort.Slice(requests, func(i, j int) bool {
		return requests[i].id.String() < requests[j].id.String()
	})
	return requests, nil
}

// lockItems locks the orders owning the requested items, then reads the items.
// Closing, deleting and replacing items take the same order lock, so a return can
// never release units that a concurrent close is also releasing.
func lockItems(tx *gorm.DB, requests []itemReturn) (map[uuid.UUID]*model.OrderItem, error) {
	ids := make([]uuid.UUID, 0, len(requests))
	for _, r := range requests {
		ids = append(ids, r.id)
	}

	var owners []uuid.UUID
	if err := tx.Model(&model.OrderItem{}).
		Distinct().
		Where("id IN ?", ids).
		Pluck("order_id", &owners).Error; err != nil {
		return nil, apperror.Persistence("retrieve order items", err)
	}

	if len(owners) > 0 {
		var orders []model.Order
		if err := ordersForUpdate(tx, owners).Find(&orders).Error; err != nil {
			return nil, apperror.Persistence("lock orders", err)
		}
		for _, o := range orders {
			if o.Status != model.OrderActive {
				return nil, apperror.Validation("order %s is %s and accepts no returns", o.ID, o.Status)
			}
		}
	}

	var found []model.OrderItem
	if err := tx.Where("id IN ?", ids).Find(&found).Error; err != nil {
		return nil, apperror.Persistence("retrieve order items", err)
	}
	items := make(map[uuid.UUID]*model.OrderItem, len(found))
	for i := range found {
		items[found[i].ID] = &found[i]
	}
	for _, id := range ids {
		if _, ok := items[id]; !ok {
			return nil, apperror.NotFound("order item", id)
		}
	}
	return items, nil
}

// ordersForUpdate selects orders with row locks, in id order so concurrent
// submissions acquire them in the same sequence
func ordersForUpdate(tx *gorm.DB, ids []uuid.UUID) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id", "status").
		Where("id IN ?", ids).
		Order("id")
}

func check(item *model.OrderItem, r itemReturn) error {
	if r.product != nil && *r.product != item.ProductID {
		return apperror.Validation("productId does not match order item %s", item.ID)
	}
	if r.quantity > item.Outstanding() {
		return apperror.Validation("return quantity %d exceeds outstanding quantity %d for order item %s",
			r.quantity, item.Outstanding(), item.ID)
	}
	return nil
}
