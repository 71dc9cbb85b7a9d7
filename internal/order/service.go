// Package order manages the rental order lifecycle: creation, full updates, status
// transitions and deletion. Every mutation runs in one transaction together with the
// stock movements it implies.
package order

import (
	"context"
	"errors"
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

// ListFilter narrows List. Zero values match everything.
type ListFilter struct {
	Status     model.OrderStatus
	CustomerID *uuid.UUID
}

// Service implements the order operations
type Service struct {
	db     *gorm.DB
	ledger *inventory.Ledger
	log    *zap.Logger
}

// NewService creates an order service
func NewService(db *gorm.DB, ledger *inventory.Ledger, log *zap.Logger) *Service {
	return &Service{db: db, ledger: ledger, log: log}
}

// Create validates the input, inserts the order with its items and reserves their
// stock as one unit, then returns the hydrated order.
func (s *Service) Create(ctx context.Context, in CreateInput) (*model.Order, error) {
	order, items, err := in.build()
	if err != nil {
		return nil, err
	}

	defer prometheus.TrackDBOperation("create_order")(time.Now())

	var moved inventory.Tally
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureExists(tx, &model.Customer{}, "customer", order.CustomerID); err != nil {
			return err
		}
		if order.VehicleID != nil {
			if err := ensureExists(tx, &model.Vehicle{}, "vehicle", *order.VehicleID); err != nil {
				return err
			}
		}

		if err := tx.Omit(clause.Associations).Create(order).Error; err != nil {
			return apperror.Persistence("create order", err)
		}
		return s.insertItems(ctx, tx, order.ID, items, &moved)
	})
	prometheus.RecordOperation("create", err)
	if err != nil {
		s.log.Warn("Order creation failed",
			zap.String("customer_id", order.CustomerID.String()),
			zap.Error(err))
		return nil, apperror.Wrap("create order", err)
	}
	moved.Record()

	s.log.Info("Order created",
		zap.String("order_id", order.ID.String()),
		zap.String("customer_id", order.CustomerID.String()),
		zap.Int("items", len(items)))
	return s.Get(ctx, order.ID)
}

// Update rewrites the order header and, when items are supplied, replaces the whole
// item set. Released and reserved stock commit together with the new items.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*model.Order, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	var items []model.OrderItem
	if in.Items != nil {
		var err error
		if items, err = buildItems(in.Items); err != nil {
			return nil, err
		}
	}

	defer prometheus.TrackDBOperation("update_order")(time.Now())

	var moved inventory.Tally
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := loadOrder(tx, id)
		if err != nil {
			return err
		}

		cols := in.columns()
		if vehicleID, ok := cols["vehicle_id"].(*uuid.UUID); ok && vehicleID != nil {
			if err := ensureExists(tx, &model.Vehicle{}, "vehicle", *vehicleID); err != nil {
				return err
			}
		}

		if err := tx.Model(&model.Order{}).Where("id = ?", id).Updates(cols).Error; err != nil {
			return apperror.Persistence("update order", err)
		}

		if items == nil {
			return nil
		}
		if current.Status != model.OrderActive {
			return apperror.Validation("items can only be replaced while the order is Active")
		}

		released := inventory.Outstanding(current.Items)
		if err := s.ledger.WithTx(tx).ReleaseAll(ctx, released); err != nil {
			return err
		}
		moved.Released += inventory.Total(released)
		if err := tx.Where("order_id = ?", id).Delete(&model.OrderItem{}).Error; err != nil {
			return apperror.Persistence("delete order items", err)
		}
		return s.insertItems(ctx, tx, id, items, &moved)
	})
	prometheus.RecordOperation("update", err)
	if err != nil {
		return nil, apperror.Wrap("update order", err)
	}
	moved.Record()

	s.log.Info("Order updated",
		zap.String("order_id", id.String()),
		zap.Bool("items_replaced", items != nil))
	return s.Get(ctx, id)
}

// UpdateStatus moves an order through Active -> Completed | Cancelled. Closing an
// order returns all of its outstanding stock. Setting the current status again is a
// no-op; leaving a terminal status is rejected.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, raw string) (*model.Order, error) {
	status, err := ParseStatus(raw)
	if err != nil {
		return nil, err
	}

	defer prometheus.TrackDBOperation("update_order_status")(time.Now())

	var (
		from  model.OrderStatus
		moved inventory.Tally
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := loadOrder(tx, id)
		if err != nil {
			return err
		}
		from = current.Status

		if current.Status == status {
			return nil
		}
		if current.Status.Terminal() {
			return apperror.Validation("cannot change status of a %s order to %s", current.Status, status)
		}

		released := inventory.Outstanding(current.Items)
		if err := s.ledger.WithTx(tx).ReleaseAll(ctx, released); err != nil {
			return err
		}
		moved.Released += inventory.Total(released)
		if err := tx.Model(&model.OrderItem{}).
			Where("order_id = ?", id).
			Update("returned_quantity", gorm.Expr("quantity")).Error; err != nil {
			return apperror.Persistence("close order items", err)
		}
		if err := tx.Model(&model.Order{}).Where("id = ?", id).Update("status", status).Error; err != nil {
			return apperror.Persistence("update order status", err)
		}
		return nil
	})
	prometheus.RecordOperation("update_status", err)
	if err != nil {
		return nil, apperror.Wrap("update order status", err)
	}
	moved.Record()

	s.log.Info("Order status updated",
		zap.String("order_id", id.String()),
		zap.String("from", string(from)),
		zap.String("to", string(status)))
	return s.Get(ctx, id)
}

// Delete removes an order and its items. Stock still held by an Active order is
// released first.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	defer prometheus.TrackDBOperation("delete_order")(time.Now())

	var moved inventory.Tally
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := loadOrder(tx, id)
		if err != nil {
			return err
		}

		if current.Status == model.OrderActive {
			released := inventory.Outstanding(current.Items)
			if err := s.ledger.WithTx(tx).ReleaseAll(ctx, released); err != nil {
				return err
			}
			moved.Released += inventory.Total(released)
		}
		if err := tx.Where("order_id = ?", id).Delete(&model.OrderItem{}).Error; err != nil {
			return apperror.Persistence("delete order items", err)
		}
		if err := tx.Delete(&model.Order{}, "id = ?", id).Error; err != nil {
			return apperror.Persistence("delete order", err)
		}
		return nil
	})
	prometheus.RecordOperation("delete", err)
	if err != nil {
		return apperror.Wrap("delete order", err)
	}
	moved.Record()

	s.log.Info("Order deleted", zap.String("order_id", id.String()))
	return nil
}

// Get returns one hydrated order with freshly computed price details
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	defer prometheus.TrackDBOperation("get_order")(time.Now())

	var order model.Order
	err := hydrate(s.db.WithContext(ctx)).First(&order, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NotFound("order", id)
	}
	if err != nil {
		return nil, apperror.Persistence("retrieve order", err)
	}

	order.ComputePriceDetails()
	return &order, nil
}

// List returns hydrated orders, newest first. Associations load with one query
// each regardless of the number of orders.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]model.Order, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, apperror.Validation(msgInvalidStatus)
	}

	defer prometheus.TrackDBOperation("list_orders")(time.Now())

	query := hydrate(s.db.WithContext(ctx)).Order("created_at DESC")
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.CustomerID != nil {
		query = query.Where("customer_id = ?", *filter.CustomerID)
	}

	orders := []model.Order{}
	if err := query.Find(&orders).Error; err != nil {
		return nil, apperror.Persistence("retrieve orders", err)
	}
	for i := range orders {
		orders[i].ComputePriceDetails()
	}
	return orders, nil
}

// Items returns the line items of one order with their products
func (s *Service) Items(ctx context.Context, orderID uuid.UUID) ([]model.OrderItem, error) {
	db := s.db.WithContext(ctx)
	if err := ensureExists(db, &model.Order{}, "order", orderID); err != nil {
		return nil, err
	}

	items := []model.OrderItem{}
	err := db.Preload("Product").
		Where("order_id = ?", orderID).
		Order("position, created_at").
		Find(&items).Error
	if err != nil {
		return nil, apperror.Persistence("retrieve order items", err)
	}
	return items, nil
}

// insertItems reserves stock for items and stores them under orderID
func (s *Service) insertItems(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, items []model.OrderItem, moved *inventory.Tally) error {
	reserved := inventory.Outstanding(items)
	if err := s.ledger.WithTx(tx).ReserveAll(ctx, reserved); err != nil {
		return err
	}
	moved.Reserved += inventory.Total(reserved)
	for i := range items {
		items[i].OrderID = orderID
	}
	if err := tx.Omit(clause.Associations).Create(&items).Error; err != nil {
		return apperror.Persistence("create order items", err)
	}
	return nil
}

func hydrate(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Customer").
		Preload("Vehicle").
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("position, created_at")
		}).
		Preload("Items.Product")
}

// forUpdate locks the selected rows until the transaction ends. Every path that
// releases an order's outstanding stock locks the order row first, so closing,
// deleting, replacing items and returning goods on one order are serialized.
func forUpdate(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// loadOrder locks the order row and reads it with its items
func loadOrder(tx *gorm.DB, id uuid.UUID) (*model.Order, error) {
	var order model.Order
	err := forUpdate(tx).Preload("Items").First(&order, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NotFound("order", id)
	}
	if err != nil {
		return nil, apperror.Persistence("retrieve order", err)
	}
	return &order, nil
}

func ensureExists(db *gorm.DB, table interface{}, resource string, id uuid.UUID) error {
	var count int64
	if err := db.Model(table).Where("id = ?", id).Count(&count).Error; err != nil {
		return apperror.Persistence("look up "+resource, err)
	}
	if count == 0 {
		return apperror.NotFound(resource, id)
	}
	return nil
}
