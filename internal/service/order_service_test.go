package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Lixing-Zhang/storefront/internal/config"
	"github.com/Lixing-Zhang/storefront/internal/models"
	"github.com/Lixing-Zhang/storefront/internal/notify"
	"github.com/Lixing-Zhang/storefront/internal/repository"
	"github.com/Lixing-Zhang/storefront/pkg/logger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var msk = time.FixedZone("MSK", 3*60*60)

// Tuesday morning
var testNow = time.Date(2030, 6, 4, 10, 0, 0, 0, msk)

func testPolicy() DeliveryPolicy {
	return DeliveryPolicy{
		ServiceAreaPrefix: "г. Михайловск",
		LeadTime:          30 * time.Minute,
		ClosedWeekday:     time.Monday,
		WindowStart:       config.TimeOfDay{Hour: 9},
		WindowEnd:         config.TimeOfDay{Hour: 16},
		Location:          msk,
	}
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages map[int64]string
}

func (n *recordingNotifier) Notify(orderID int64, text string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.messages == nil {
		n.messages = make(map[int64]string)
	}
	n.messages[orderID] = text
	return true
}

type failingRenderer struct{}

func (failingRenderer) Render(models.Order) (string, error) {
	return "", errors.New("template broken")
}

type fixture struct {
	store    *repository.MemoryStore
	notifier *recordingNotifier
	svc      *OrderService
	bread    models.Product
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repository.NewMemoryStore()
	bread := models.Product{Name: "Bread", Price: decimal.NewFromInt(50), Quantity: 5, Category: models.DefaultCategory}
	require.NoError(t, store.Create(context.Background(), &bread))

	renderer, err := notify.NewRenderer("ru")
	require.NoError(t, err)

	notifier := &recordingNotifier{}
	svc := NewOrderService(store, testPolicy(), renderer, notifier, logger.Discard())
	svc.now = func() time.Time { return testNow }

	return &fixture{store: store, notifier: notifier, svc: svc, bread: bread}
}

func (f *fixture) quantity(t *testing.T) int {
	t.Helper()
	p, err := f.store.GetByID(context.Background(), f.bread.ID)
	require.NoError(t, err)
	return p.Quantity
}

func pickup(items ...models.OrderItemRequest) models.OrderRequest {
	return models.OrderRequest{
		CustomerName:    "Ivan",
		Phone:           "+79990000000",
		DeliveryMethod:  models.DeliveryPickup,
		DesiredDateTime: "2030-06-04 12:00:00",
		Items:           items,
	}
}

func delivery(address, when string, items ...models.OrderItemRequest) models.OrderRequest {
	req := pickup(items...)
	req.DeliveryMethod = models.DeliveryDelivery
	req.Address = address
	req.DesiredDateTime = when
	return req
}

func item(id int64, qty int) models.OrderItemRequest {
	return models.OrderItemRequest{ProductID: id, Quantity: qty}
}

func TestOrderService_PickupDecrementsStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order, err := f.svc.PlaceOrder(ctx, pickup(item(f.bread.ID, 3)))
	require.NoError(t, err)
	assert.Equal(t, int64(1), order.ID)
	assert.Equal(t, 2, f.quantity(t))

	orders, err := f.svc.ListOrders(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, 3, orders[0].Items[0].Quantity)
	assert.Equal(t, f.bread.ID, orders[0].Items[0].ProductID)

	text := f.notifier.messages[order.ID]
	assert.True(t, strings.HasPrefix(text, "Новый заказ:\n"), text)
	assert.Contains(t, text, "Способ получения: Самовывоз\n")
	assert.Contains(t, text, "Bread - 3 шт. (цена: 50.00 руб.)\n")
	assert.NotContains(t, text, "Адрес:")
}

func TestOrderService_InsufficientStockNamesProduct(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.PlaceOrder(context.Background(), pickup(item(f.bread.ID, 10)))

	var stockErr *repository.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "Bread", stockErr.Name)
	assert.Contains(t, err.Error(), "Bread")
	assert.Equal(t, 5, f.quantity(t))
	assert.Empty(t, f.notifier.messages)
}

func TestOrderService_UnknownProduct(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.PlaceOrder(context.Background(), pickup(item(f.bread.ID, 1), item(404, 1)))
	assert.ErrorIs(t, err, repository.ErrProductNotFound)
	assert.Equal(t, 5, f.quantity(t))
}

func TestOrderService_DeliveryOutsideServiceArea(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.PlaceOrder(context.Background(), delivery("Other City", "2030-06-04 12:00:00", item(f.bread.ID, 1)))
	assert.ErrorIs(t, err, ErrOutOfServiceArea)
	assert.Equal(t, 5, f.quantity(t))
}

func TestOrderService_DeliveryAccepted(t *testing.T) {
	f := newFixture(t)

	order, err := f.svc.PlaceOrder(context.Background(),
		delivery("Г. МИХАЙЛОВСК, ул. Ленина 1", "2030-06-04 12:00:00", item(f.bread.ID, 2)))
	require.NoError(t, err)
	assert.Equal(t, "Г. МИХАЙЛОВСК, ул. Ленина 1", order.Address)
	assert.Equal(t, 3, f.quantity(t))
	assert.Contains(t, f.notifier.messages[order.ID], "Адрес: Г. МИХАЙЛОВСК, ул. Ленина 1\n")
	assert.Contains(t, f.notifier.messages[order.ID], "Способ получения: Доставка\n")
}

func TestOrderService_Validation(t *testing.T) {
	const area = "г. Михайловск, ул. Мира 5"

	tests := []struct {
		name    string
		mutate  func(r *models.OrderRequest)
		req     *models.OrderRequest
		wantErr error
		wantMsg string
	}{
		{name: "missing customer name", mutate: func(r *models.OrderRequest) { r.CustomerName = "" }, wantErr: ErrMissingField, wantMsg: "customer_name"},
		{name: "blank phone", mutate: func(r *models.OrderRequest) { r.Phone = "   " }, wantErr: ErrMissingField, wantMsg: "phone"},
		{name: "missing delivery method", mutate: func(r *models.OrderRequest) { r.DeliveryMethod = "" }, wantErr: ErrMissingField, wantMsg: "delivery_method"},
		{name: "missing datetime", mutate: func(r *models.OrderRequest) { r.DesiredDateTime = "" }, wantErr: ErrMissingField, wantMsg: "desired_datetime"},
		{name: "nil items", mutate: func(r *models.OrderRequest) { r.Items = nil }, wantErr: ErrMissingField, wantMsg: "items"},
		{name: "empty items", mutate: func(r *models.OrderRequest) { r.Items = []models.OrderItemRequest{} }, wantErr: ErrMissingField, wantMsg: "items"},
		{name: "item without id", mutate: func(r *models.OrderRequest) { r.Items = []models.OrderItemRequest{item(0, 1)} }, wantErr: ErrMissingField, wantMsg: "items[0].id"},
		{name: "zero quantity", mutate: func(r *models.OrderRequest) { r.Items = []models.OrderItemRequest{item(1, 0)} }, wantErr: ErrInvalidQuantity},
		{name: "negative quantity is a validation error", mutate: func(r *models.OrderRequest) { r.Items = []models.OrderItemRequest{item(1, -2)} }, wantErr: ErrValidation},
		{name: "missing field wins over bad method", mutate: func(r *models.OrderRequest) { r.Phone = ""; r.DeliveryMethod = "drone" }, wantErr: ErrMissingField},
		{name: "unknown delivery method", mutate: func(r *models.OrderRequest) { r.DeliveryMethod = "drone" }, wantErr: ErrInvalidDeliveryMethod, wantMsg: "drone"},
		{name: "delivery without address", mutate: func(r *models.OrderRequest) { r.DeliveryMethod = models.DeliveryDelivery }, wantErr: ErrMissingAddress},
		{name: "delivery with blank address", mutate: func(r *models.OrderRequest) { r.DeliveryMethod = models.DeliveryDelivery; r.Address = "  " }, wantErr: ErrMissingAddress},
		{name: "bad datetime format", mutate: func(r *models.OrderRequest) { r.DesiredDateTime = "04.06.2030 12:00" }, wantErr: ErrInvalidDateTime, wantMsg: "04.06.2030 12:00"},
		{name: "bad datetime checked before area", req: ptr(delivery("Other City", "tomorrow", item(1, 1))), wantErr: ErrInvalidDateTime},
		{name: "too soon", req: ptr(delivery(area, "2030-06-04 10:20:00", item(1, 1))), wantErr: ErrLeadTime, wantMsg: "2030-06-04 10:30:00"},
		{name: "exactly the lead time is accepted", req: ptr(delivery(area, "2030-06-04 10:30:00", item(1, 1)))},
		{name: "closed day", req: ptr(delivery(area, "2030-06-10 12:00:00", item(1, 1))), wantErr: ErrClosedDay},
		{name: "closed day regardless of hour", req: ptr(delivery(area, "2030-06-10 23:30:00", item(1, 1))), wantErr: ErrClosedDay},
		{name: "before window", req: ptr(delivery(area, "2030-06-05 08:59:00", item(1, 1))), wantErr: ErrOutOfHours},
		{name: "window start inclusive", req: ptr(delivery(area, "2030-06-05 09:00:00", item(1, 1)))},
		{name: "window end inclusive", req: ptr(delivery(area, "2030-06-05 16:00:59", item(1, 1)))},
		{name: "after window", req: ptr(delivery(area, "2030-06-05 16:01:00", item(1, 1))), wantErr: ErrOutOfHours},
		{name: "pickup ignores delivery rules", req: ptr(pickup(item(1, 1)))},
		{name: "pickup in the past is accepted", mutate: func(r *models.OrderRequest) { r.DesiredDateTime = "2020-01-06 03:00:00" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			req := pickup(item(f.bread.ID, 1))
			if tt.req != nil {
				req = *tt.req
			}
			if tt.mutate != nil {
				tt.mutate(&req)
			}

			_, err := f.svc.PlaceOrder(context.Background(), req)
			if tt.wantErr == nil {
				require.NoError(t, err)
				assert.Equal(t, 4, f.quantity(t))
				return
			}

			assert.ErrorIs(t, err, tt.wantErr)
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
			assert.Equal(t, 5, f.quantity(t))
			assert.Empty(t, f.notifier.messages)
		})
	}
}

func TestOrderService_NotificationFailureKeepsOrder(t *testing.T) {
	store := repository.NewMemoryStore()
	bread := models.Product{Name: "Bread", Price: decimal.NewFromInt(50), Quantity: 5}
	require.NoError(t, store.Create(context.Background(), &bread))

	notifier := &recordingNotifier{}
	svc := NewOrderService(store, testPolicy(), failingRenderer{}, notifier, logger.Discard())

	order, err := svc.PlaceOrder(context.Background(), pickup(item(bread.ID, 1)))
	require.NoError(t, err)
	assert.NotZero(t, order.ID)
	assert.Empty(t, notifier.messages)

	orders, err := svc.ListOrders(context.Background())
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestOrderService_ConcurrentOrdersNeverOversell(t *testing.T) {
	f := newFixture(t)

	var wg sync.WaitGroup
	results := make(chan error, 20)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.PlaceOrder(context.Background(), pickup(item(f.bread.ID, 2)))
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	accepted := 0
	for err := range results {
		if err == nil {
			accepted++
			continue
		}
		assert.ErrorIs(t, err, repository.ErrInsufficientStock)
	}

	assert.Equal(t, 2, accepted)
	assert.Equal(t, 1, f.quantity(t))
}

func ptr[T any](v T) *T {
	return &v
}
