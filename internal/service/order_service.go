package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/Lixing-Zhang/storefront/internal/models"
	"github.com/Lixing-Zhang/storefront/internal/repository"
	"github.com/go-playground/validator/v10"
)

// OrderRenderer renders the chat message for an accepted order
type OrderRenderer interface {
	Render(order models.Order) (string, error)
}

// Notifier hands a rendered message to the notification pipeline without blocking
type Notifier interface {
	Notify(orderID int64, text string) bool
}

// OrderService runs the order placement workflow
type OrderService struct {
	orders   repository.OrderRepository
	policy   DeliveryPolicy
	renderer OrderRenderer
	notifier Notifier
	validate *validator.Validate
	logger   *slog.Logger
	now      func() time.Time
}

// NewOrderService creates a new order service
func NewOrderService(
	orders repository.OrderRepository,
	policy DeliveryPolicy,
	renderer OrderRenderer,
	notifier Notifier,
	logger *slog.Logger,
) *OrderService {
	return &OrderService{
		orders:   orders,
		policy:   policy,
		renderer: renderer,
		notifier: notifier,
		validate: newRequestValidator(),
		logger:   logger,
		now:      time.Now,
	}
}

// newRequestValidator reports fields by their JSON names
func newRequestValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// PlaceOrder validates the request, then decrements stock and records the
// order as one unit. The notification is queued only after the order is stored
// and its failure never affects the result.
func (s *OrderService) PlaceOrder(ctx context.Context, req models.OrderRequest) (*models.Order, error) {
	req = normalizeRequest(req)

	// Validate request
	if err := s.checkRequired(req); err != nil {
		return nil, err
	}
	for i, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("%w: items[%d].qty = %d", ErrInvalidQuantity, i, item.Quantity)
		}
	}

	if req.DeliveryMethod != models.DeliveryPickup && req.DeliveryMethod != models.DeliveryDelivery {
		return nil, fmt.Errorf("%w: got %q", ErrInvalidDeliveryMethod, req.DeliveryMethod)
	}
	isDelivery := req.DeliveryMethod == models.DeliveryDelivery
	if isDelivery && req.Address == "" {
		return nil, ErrMissingAddress
	}

	desired, err := s.policy.ParseDesired(req.DesiredDateTime)
	if err != nil {
		return nil, err
	}
	if isDelivery {
		if err := s.policy.Check(req.Address, desired, s.now()); err != nil {
			return nil, err
		}
	}

	order := &models.Order{
		CustomerName:    req.CustomerName,
		Phone:           req.Phone,
		DeliveryMethod:  req.DeliveryMethod,
		DesiredDateTime: desired.Format(models.DateTimeLayout),
		Items:           make([]models.OrderItem, len(req.Items)),
	}
	if isDelivery {
		order.Address = req.Address
	}
	for i, item := range req.Items {
		order.Items[i] = models.OrderItem{ProductID: item.ProductID, Quantity: item.Quantity}
	}

	// Check and decrement stock, append to the ledger
	if err := s.orders.PlaceOrder(ctx, order); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "order placed",
		"order_id", order.ID,
		"delivery_method", order.DeliveryMethod,
		"items", len(order.Items),
	)

	s.dispatch(ctx, *order)
	return order, nil
}

// ListOrders returns the ledger, oldest first
func (s *OrderService) ListOrders(ctx context.Context) ([]models.Order, error) {
	return s.orders.ListOrders(ctx)
}

func (s *OrderService) dispatch(ctx context.Context, order models.Order) {
	if s.renderer == nil || s.notifier == nil {
		return
	}
	text, err := s.renderer.Render(order)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to render order notification", "order_id", order.ID, "error", err)
		return
	}
	s.notifier.Notify(order.ID, text)
}

func (s *OrderService) checkRequired(req models.OrderRequest) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return fmt.Errorf("%w: %s", ErrMissingField, fieldPath(verrs[0]))
}

// fieldPath drops the struct name from the namespace, e.g. "items[0].id"
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}

// normalizeRequest trims text fields so whitespace-only values count as missing
func normalizeRequest(req models.OrderRequest) models.OrderRequest {
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	req.Phone = strings.TrimSpace(req.Phone)
	req.DeliveryMethod = strings.TrimSpace(req.DeliveryMethod)
	req.DesiredDateTime = strings.TrimSpace(req.DesiredDateTime)
	req.Address = strings.TrimSpace(req.Address)
	return req
}
