package order

import (
	"context"
	"fmt"
	"testing"

	"rental-service/internal/apperror"
	"rental-service/internal/dbtest"
	"rental-service/internal/inventory"
	"rental-service/internal/model"
	"rental-service/internal/pricing"
	"rental-service/pkg/config"
	"rental-service/prometheus"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db       *gorm.DB
	svc      *Service
	customer *model.Customer
	product  *model.Product
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.Open(t)
	log := zap.NewNop()
	return &fixture{
		db:       db,
		svc:      NewService(db, inventory.NewLedger(db, log), log),
		customer: dbtest.Customer(t, db, "Asha"),
		product:  dbtest.Product(t, db, "Chair", 10, "50.00"),
	}
}

func dec(s string) *decimal.Decimal {
	v := decimal.RequireFromString(s)
	return &v
}

func item(productID uuid.UUID, quantity, days int, rate string) ItemInput {
	return ItemInput{
		ProductID:    productID.String(),
		Quantity:     quantity,
		ProductRate:  dec(rate),
		RentRate:     dec(rate),
		NumberOfDays: days,
	}
}

func (f *fixture) createInput(items ...ItemInput) CreateInput {
	return CreateInput{
		CustomerID:      f.customer.ID.String(),
		Items:           items,
		DeliveryAddress: "4 Lake View",
		PaymentMethod:   model.PaymentCash,
	}
}

func (f *fixture) countOrders(t *testing.T) (orders, items int64) {
	t.Helper()
	require.NoError(t, f.db.Model(&model.Order{}).Count(&orders).Error)
	require.NoError(t, f.db.Model(&model.OrderItem{}).Count(&items).Error)
	return orders, items
}

func assertMoney(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got.String())
}

func TestCreateRentalScenario(t *testing.T) {
	f := setup(t)
	percentage := pricing.DiscountPercentage

	in := f.createInput(item(f.product.ID, 2, 3, "50.00"))
	in.DiscountType = &percentage
	in.DiscountValue = dec("10")
	in.DeliveryCharge = dec("20")
	in.InitialPaid = dec("100")

	order, err := f.svc.Create(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, model.OrderActive, order.Status)
	assert.True(t, order.PickupRequired)
	require.NotNil(t, order.Customer)
	assert.Equal(t, "Asha", order.Customer.Name)
	require.Len(t, order.Items, 1)
	require.NotNil(t, order.Items[0].Product)
	assert.Equal(t, "Chair", order.Items[0].Product.Name)

	require.NotNil(t, order.PriceDetails)
	assertMoney(t, "300.00", order.PriceDetails.Price)
	assertMoney(t, "30.00", order.PriceDetails.DiscountAmount)
	assertMoney(t, "20.00", order.PriceDetails.DeliveryCharge)
	assertMoney(t, "290.00", order.PriceDetails.Total)
	assertMoney(t, "190.00", order.PriceDetails.RemainingAmount)

	assert.Equal(t, 8, dbtest.Stock(t, f.db, f.product.ID))
}

func TestCreatePickupRequiredFalse(t *testing.T) {
	f := setup(t)
	no := false

	in := f.createInput(item(f.product.ID, 1, 1, "50"))
	in.PickupRequired = &no

	order, err := f.svc.Create(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, order.PickupRequired)
}

func TestCreateValidation(t *testing.T) {
	f := setup(t)
	bogusDiscount := pricing.DiscountType("loyalty")

	tests := []struct {
		name   string
		mutate func(in *CreateInput)
	}{
		{"empty items", func(in *CreateInput) { in.Items = nil }},
		{"missing customer", func(in *CreateInput) { in.CustomerID = "" }},
		{"malformed customer", func(in *CreateInput) { in.CustomerID = "42" }},
		{"missing address", func(in *CreateInput) { in.DeliveryAddress = " " }},
		{"missing payment", func(in *CreateInput) { in.PaymentMethod = "" }},
		{"unknown payment", func(in *CreateInput) { in.PaymentMethod = "cheque" }},
		{"zero quantity", func(in *CreateInput) { in.Items[0].Quantity = 0 }},
		{"zero days", func(in *CreateInput) { in.Items[0].NumberOfDays = 0 }},
		{"negative rent rate", func(in *CreateInput) { in.Items[0].RentRate = dec("-1") }},
		{"missing product rate", func(in *CreateInput) { in.Items[0].ProductRate = nil }},
		{"malformed product", func(in *CreateInput) { in.Items[0].ProductID = "chair" }},
		{"malformed vehicle", func(in *CreateInput) { v := "truck"; in.VehicleID = &v }},
		{"unknown discount", func(in *CreateInput) { in.DiscountType = &bogusDiscount }},
		{"negative delivery", func(in *CreateInput) { in.DeliveryCharge = dec("-5") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := f.createInput(item(f.product.ID, 1, 1, "50"))
			tt.mutate(&in)

			_, err := f.svc.Create(context.Background(), in)
			assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
		})
	}

	orders, items := f.countOrders(t)
	assert.Zero(t, orders)
	assert.Zero(t, items)
	assert.Equal(t, 10, dbtest.Stock(t, f.db, f.product.ID))
}

func TestCreateBadSecondItemLeavesNothing(t *testing.T) {
	f := setup(t)
	in := f.createInput(item(f.product.ID, 1, 1, "50"), item(f.product.ID, -1, 1, "50"))

	_, err := f.svc.Create(context.Background(), in)
	require.Error(t, err)

	orders, items := f.countOrders(t)
	assert.Zero(t, orders)
	assert.Zero(t, items)
}

func TestCreateInsufficientStockRollsBack(t *testing.T) {
	f := setup(t)
	scarce := dbtest.Product(t, f.db, "Tent", 2, "120.00")

	in := f.createInput(item(f.product.ID, 4, 1, "50"), item(scarce.ID, 3, 1, "120"))

	_, err := f.svc.Create(context.Background(), in)
	assert.ErrorIs(t, err, apperror.ErrInsufficientStock)

	assert.Equal(t, 2, dbtest.Stock(t, f.db, scarce.ID))
	assert.Equal(t, 10, dbtest.Stock(t, f.db, f.product.ID))
	orders, items := f.countOrders(t)
	assert.Zero(t, orders)
	assert.Zero(t, items)
}

func TestCreateMissingReferences(t *testing.T) {
	f := setup(t)

	t.Run("customer", func(t *testing.T) {
		in := f.createInput(item(f.product.ID, 1, 1, "50"))
		in.CustomerID = uuid.NewString()
		_, err := f.svc.Create(context.Background(), in)
		assert.ErrorIs(t, err, apperror.ErrNotFound)
	})

	t.Run("vehicle", func(t *testing.T) {
		in := f.createInput(item(f.product.ID, 1, 1, "50"))
		v := uuid.NewString()
		in.VehicleID = &v
		_, err := f.svc.Create(context.Background(), in)
		assert.ErrorIs(t, err, apperror.ErrNotFound)
	})

	t.Run("product", func(t *testing.T) {
		in := f.createInput(item(uuid.New(), 1, 1, "50"))
		_, err := f.svc.Create(context.Background(), in)
		assert.ErrorIs(t, err, apperror.ErrNotFound)
	})

	orders, _ := f.countOrders(t)
	assert.Zero(t, orders)
}

func TestCreateWithVehicle(t *testing.T) {
	f := setup(t)
	vehicle := dbtest.Vehicle(t, f.db, "KA-01-1234")
	id := vehicle.ID.String()

	in := f.createInput(item(f.product.ID, 1, 1, "50"))
	in.VehicleID = &id

	order, err := f.svc.Create(context.Background(), in)
	require.NoError(t, err)
	require.NotNil(t, order.Vehicle)
	assert.Equal(t, "KA-01-1234", order.Vehicle.Number)
}

func TestDeleteRemovesItemsAndRestoresStock(t *testing.T) {
	f := setup(t)
	order, err := f.svc.Create(context.Background(), f.createInput(item(f.product.ID, 3, 2, "50")))
	require.NoError(t, err)
	require.Equal(t, 7, dbtest.Stock(t, f.db, f.product.ID))

	require.NoError(t, f.svc.Delete(context.Background(), order.ID))

	assert.Equal(t, 10, dbtest.Stock(t, f.db, f.product.ID))
	_, err = f.svc.Items(context.Background(), order.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	_, items := f.countOrders(t)
	assert.Zero(t, items)

	err = f.svc.Delete(context.Background(), order.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestDeleteClosedOrderKeepsStock(t *testing.T) {
	f := setup(t)
	order, err := f.svc.Create(context.Background(), f.createInput(item(f.product.ID, 3, 2, "50")))
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(context.Background(), order.ID, "Completed")
	require.NoError(t, err)
	require.Equal(t, 10, dbtest.Stock(t, f.db, f.product.ID))

	require.NoError(t, f.svc.Delete(context.Background(), order.ID))
	assert.Equal(t, 10, dbtest.Stock(t, f.db, f.product.ID))
}

func TestUpdateStatusRejectsUnknownValue(t *testing.T) {
	f := setup(t)
	order, err := f.svc.Create(context.Background(), f.createInput(item(f.product.ID, 1, 1, "50")))
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(context.Background(), order.ID, "Shipped")
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))

	got, err := f.svc.Get(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderActive, got.Status)
}

func TestUpdateStatusTransitions(t *testing.T) {
	tests := []struct {
		name    string
		steps   []string
		want    model.OrderStatus
		wantErr bool
		stock   int
	}{
		{"active to active", []string{"Active"}, model.OrderActive, false, 8},
		{"active to completed", []string{"Completed"}, model.OrderCompleted, false, 10},
		{"active to cancelled", []string{"Cancelled"}, model.OrderCancelled, false, 10},
		{"completed again", []string{"Completed", "Completed"}, model.OrderCompleted, false, 10},
		{"completed to active", []string{"Completed", "Active"}, model.OrderCompleted, true, 10},
		{"cancelled to completed", []string{"Cancelled", "Completed"}, model.OrderCancelled, true, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t)
			order, err := f.svc.Create(context.Background(), f.createInput(item(f.product.ID, 2, 1, "50")))
			require.NoError(t, err)

			for _, step := range tt.steps {
				_, err = f.svc.UpdateStatus(context.Background(), order.ID, step)
			}
			if tt.wantErr {
				assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
			} else {
				assert.NoError(t, err)
			}

			got, err := f.svc.Get(context.Background(), order.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Status)
			assert.Equal(t, tt.stock, dbtest.Stock(t, f.db, f.product.ID))
		})
	}
}

func TestUpdateStatusMissingOrder(t *testing.T) {
	f := setup(t)

	_, err := f.svc.UpdateStatus(context.Background(), uuid.New(), "Completed")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestUpdateReplacesItemsAndAdjustsStock(t *testing.T) {
	f := setup(t)
	lamp := dbtest.Product(t, f.db, "Lamp", 5, "15.00")
	order, err := f.svc.Create(context.Background(), f.createInput(item(f.product.ID, 4, 2, "50")))
	require.NoError(t, err)
	require.Equal(t, 6, dbtest.Stock(t, f.db, f.product.ID))

	remarks := "second floor"
	updated, err := f.svc.Update(context.Background(), order.ID, UpdateInput{
		Items:           []ItemInput{item(f.product.ID, 1, 2, "50"), item(lamp.ID, 5, 2, "15")},
		DeliveryAddress: "9 Hill Street",
		PaymentMethod:   model.PaymentCard,
		Terms:           Terms{Remarks: &remarks},
	})
	require.NoError(t, err)

	assert.Equal(t, "9 Hill Street", updated.DeliveryAddress)
	assert.Equal(t, model.PaymentCard, updated.PaymentMethod)
	require.NotNil(t, updated.Remarks)
	assert.Equal(t, "second floor", *updated.Remarks)
	assert.Len(t, updated.Items, 2)
	// 1*50*2 + 5*15*2
	assertMoney(t, "250", updated.PriceDetails.Price)

	assert.Equal(t, 9, dbtest.Stock(t, f.db, f.product.ID))
	assert.Equal(t, 0, dbtest.Stock(t, f.db, lamp.ID))
}

func TestUpdateInsufficientStockKeepsOldItems(t *testing.T) {
	f := setup(t)
	order, err := f.svc.Create(context.Background(), f.createInput(item(f.product.ID, 4, 1, "50")))
	require.NoError(t, err)

	_, err = f.svc.Update(context.Background(), order.ID, UpdateInput{
		Items:           []ItemInput{item(f.product.ID, 11, 1, "50")},
		DeliveryAddress: "elsewhere",
		PaymentMethod:   model.PaymentCash,
	})
	assert.ErrorIs(t, err, apperror.ErrInsufficientStock)

	got, err := f.svc.Get(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, "4 Lake View", got.DeliveryAddress)
	require.Len(t, got.Items, 1)
	assert.Equal(t, 4, got.Items[0].Quantity)
	assert.Equal(t, 6, dbtest.Stock(t, f.db, f.product.ID))
}

func TestUpdateHeaderOnlyKeepsItems(t *testing.T) {
	f := setup(t)
	order, err := f.svc.Create(context.Background(), f.createInput(item(f.product.ID, 2, 1, "50")))
	require.NoError(t, err)

	fixed := pricing.DiscountFixed
	updated, err := f.svc.Update(context.Background(), order.ID, UpdateInput{
		DeliveryAddress: "4 Lake View",
		PaymentMethod:   model.PaymentOnline,
		Terms:           Terms{DiscountType: &fixed, DiscountValue: dec("25")},
	})
	require.NoError(t, err)

	require.Len(t, updated.Items, 1)
	assertMoney(t, "75", updated.PriceDetails.Total)
	assert.Equal(t, 8, dbtest.Stock(t, f.db, f.product.ID))
}

func TestUpdateValidation(t *testing.T) {
	f := setup(t)
	order, err := f.svc.Create(context.Background(), f.createInput(item(f.product.ID, 2, 1, "50")))
	require.NoError(t, err)

	tests := []struct {
		name string
		in   UpdateInput
		kind apperror.Kind
	}{
		{"missing address", UpdateInput{PaymentMethod: model.PaymentCash}, apperror.KindValidation},
		{"missing payment", UpdateInput{DeliveryAddress: "x"}, apperror.KindValidation},
		{"empty items", UpdateInput{DeliveryAddress: "x", PaymentMethod: model.PaymentCash, Items: []ItemInput{}}, apperror.KindValidation},
		{"bad item", UpdateInput{DeliveryAddress: "x", PaymentMethod: model.PaymentCash, Items: []ItemInput{item(f.product.ID, 0, 1, "50")}}, apperror.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Update(context.Background(), order.ID, tt.in)
			assert.Equal(t, tt.kind, apperror.KindOf(err))
		})
	}

	_, err = f.svc.Update(context.Background(), uuid.New(), UpdateInput{DeliveryAddress: "x", PaymentMethod: model.PaymentCash})
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestUpdateItemsOfClosedOrderRejected(t *testing.T) {
	f := setup(t)
	order, err := f.svc.Create(context.Background(), f.createInput(item(f.product.ID, 2, 1, "50")))
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(context.Background(), order.ID, "Cancelled")
	require.NoError(t, err)

	_, err = f.svc.Update(context.Background(), order.ID, UpdateInput{
		Items:           []ItemInput{item(f.product.ID, 1, 1, "50")},
		DeliveryAddress: "moved",
		PaymentMethod:   model.PaymentCash,
	})
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))

	got, err := f.svc.Get(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, "4 Lake View", got.DeliveryAddress)
	assert.Equal(t, 10, dbtest.Stock(t, f.db, f.product.ID))
}

func TestListFilters(t *testing.T) {
	f := setup(t)
	other := dbtest.Customer(t, f.db, "Ravi")

	first, err := f.svc.Create(context.Background(), f.createInput(item(f.product.ID, 1, 1, "50")))
	require.NoError(t, err)
	in := f.createInput(item(f.product.ID, 1, 1, "50"))
	in.CustomerID = other.ID.String()
	_, err = f.svc.Create(context.Background(), in)
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(context.Background(), first.ID, "Completed")
	require.NoError(t, err)

	all, err := f.svc.List(context.Background(), ListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
	for _, o := range all {
		assert.NotNil(t, o.PriceDetails)
		assert.NotNil(t, o.Customer)
		assert.Len(t, o.Items, 1)
	}

	completed, err := f.svc.List(context.Background(), ListFilter{Status: model.OrderCompleted})
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, first.ID, completed[0].ID)

	byCustomer, err := f.svc.List(context.Background(), ListFilter{CustomerID: &other.ID})
	require.NoError(t, err)
	require.Len(t, byCustomer, 1)
	assert.Equal(t, other.ID, byCustomer[0].CustomerID)

	_, err = f.svc.List(context.Background(), ListFilter{Status: "Shipped"})
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
}

func TestItems(t *testing.T) {
	f := setup(t)
	order, err := f.svc.Create(context.Background(), f.createInput(item(f.product.ID, 2, 5, "50")))
	require.NoError(t, err)

	items, err := f.svc.Items(context.Background(), order.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].Quantity)
	assert.Equal(t, 5, items[0].NumberOfDays)
	require.NotNil(t, items[0].Product)
	assert.Equal(t, f.product.ID, items[0].Product.ID)
}

func productIDs(items []model.OrderItem) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	return ids
}

func TestItemsKeepSubmittedOrder(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	var inputs []ItemInput
	var want []uuid.UUID
	for i := 0; i < 8; i++ {
		p := dbtest.Product(t, f.db, fmt.Sprintf("Part %d", i), 5, "10.00")
		inputs = append(inputs, item(p.ID, 1, 1, "10.00"))
		want = append(want, p.ID)
	}

	created, err := f.svc.Create(ctx, f.createInput(inputs...))
	require.NoError(t, err)
	assert.Equal(t, want, productIDs(created.Items))

	items, err := f.svc.Items(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, want, productIDs(items))

	orders, err := f.svc.List(ctx, ListFilter{})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, want, productIDs(orders[0].Items))

	reversed := make([]ItemInput, 0, len(inputs))
	wantReversed := make([]uuid.UUID, 0, len(want))
	for i := len(inputs) - 1; i >= 0; i-- {
		reversed = append(reversed, inputs[i])
		wantReversed = append(wantReversed, want[i])
	}
	updated, err := f.svc.Update(ctx, created.ID, UpdateInput{
		Items:           reversed,
		DeliveryAddress: "4 Lake View",
		PaymentMethod:   model.PaymentCash,
	})
	require.NoError(t, err)
	assert.Equal(t, wantReversed, productIDs(updated.Items))
}

func TestLoadOrderLocksRow(t *testing.T) {
	pg := dbtest.PostgresDryRun(t)

	stmt := pg.ToSQL(func(tx *gorm.DB) *gorm.DB {
		return forUpdate(tx).First(&model.Order{}, "id = ?", uuid.New())
	})

	assert.Contains(t, stmt, "FOR UPDATE")
}

func TestStockMetricCountsCommittedMovementsOnly(t *testing.T) {
	prometheus.InitMetrics(&config.Config{Metrics: config.MetricsConfig{Prefix: "rental_order_test"}})
	f := setup(t)
	ctx := context.Background()
	reserved := func() float64 {
		return testutil.ToFloat64(prometheus.StockMovementUnits.WithLabelValues("reserve"))
	}
	released := func() float64 {
		return testutil.ToFloat64(prometheus.StockMovementUnits.WithLabelValues("release"))
	}

	before := reserved()
	scarce := dbtest.Product(t, f.db, "Tent", 2, "120.00")
	_, err := f.svc.Create(ctx, f.createInput(
		item(f.product.ID, 4, 1, "50"),
		item(scarce.ID, 3, 1, "120"),
	))
	require.Error(t, err)
	assert.Equal(t, before, reserved())

	created, err := f.svc.Create(ctx, f.createInput(item(f.product.ID, 4, 1, "50")))
	require.NoError(t, err)
	assert.Equal(t, before+4, reserved())

	releasedBefore := released()
	_, err = f.svc.UpdateStatus(ctx, created.ID, string(model.OrderCancelled))
	require.NoError(t, err)
	assert.Equal(t, releasedBefore+4, released())
}
