package service

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/tokenapi/tokenapi/internal/model"
	"github.com/tokenapi/tokenapi/internal/repository"
)

// OrderStore is the sales order persistence the service depends on.
type OrderStore interface {
	CreateOrder(ctx context.Context, order *model.SalesOrder) error
	GetOrder(ctx context.Context, id string) (*model.SalesOrder, error)
	ListOrders(ctx context.Context) ([]*model.SalesOrder, error)
	UpdateOrder(ctx context.Context, order *model.SalesOrder) error
	DeleteOrder(ctx context.Context, id string) error
}

// OrderInput carries raw JSON values so numbers and numeric strings are
// both accepted. A nil Item or empty raw value means the field is absent.
type OrderInput struct {
	Item     *string         `json:"item"`
	Price    json.RawMessage `json:"price"`
	Quantity json.RawMessage `json:"quantity"`
}

// OrderService implements sales order CRUD.
type OrderService struct {
	store OrderStore
	now   func() time.Time

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewOrderService creates an OrderService.
func NewOrderService(store OrderStore) *OrderService {
	return &OrderService{
		store:   store,
		now:     time.Now,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// List returns all orders, newest first.
func (s *OrderService) List(ctx context.Context) ([]*model.SalesOrder, error) {
	orders, err := s.store.ListOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// Get returns one order.
func (s *OrderService) Get(ctx context.Context, id string) (*model.SalesOrder, error) {
	order, err := s.store.GetOrder(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return order, nil
}

// Create validates a full payload and stores a new order.
func (s *OrderService) Create(ctx context.Context, in OrderInput) (*model.SalesOrder, error) {
	order := &model.SalesOrder{}
	if err := applyOrderInput(order, in, false); err != nil {
		return nil, err
	}

	now := s.now().UTC().Truncate(time.Microsecond)
	order.ID = s.newID(now)
	order.CreatedAt = now
	order.UpdatedAt = now
	if err := recalculate(order); err != nil {
		return nil, err
	}

	if err := s.store.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	return order, nil
}

// Update replaces every field of an order (PUT) or only the supplied ones
// when partial is true (PATCH). Amount is always recomputed.
func (s *OrderService) Update(ctx context.Context, id string, in OrderInput, partial bool) (*model.SalesOrder, error) {
	order, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := applyOrderInput(order, in, partial); err != nil {
		return nil, err
	}
	order.UpdatedAt = s.now().UTC().Truncate(time.Microsecond)
	if err := recalculate(order); err != nil {
		return nil, err
	}

	if err := s.store.UpdateOrder(ctx, order); err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update order: %w", err)
	}
	return order, nil
}

// Delete removes an order.
func (s *OrderService) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteOrder(ctx, id); err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete order: %w", err)
	}
	return nil
}

func (s *OrderService) newID(at time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(at), s.entropy).String()
}

func applyOrderInput(order *model.SalesOrder, in OrderInput, partial bool) error {
	errs := ValidationError{}

	if in.Item != nil || !partial {
		if item := requireString(errs, "item", in.Item, 100); !errs.Has("item") {
			order.Item = item
		}
	}

	if len(in.Price) > 0 || !partial {
		if price, ok := parsePrice(errs, in.Price); ok {
			order.Price = price
		}
	}

	if len(in.Quantity) > 0 || !partial {
		if qty, ok := parseQuantity(errs, in.Quantity); ok {
			order.Quantity = qty
		}
	}

	return errs.OrNil()
}

// recalculate derives the amount, reporting an overflow as a validation error.
func recalculate(order *model.SalesOrder) error {
	if err := order.Recalculate(); err != nil {
		return ValidationError{NonFieldErrors: {MsgAmountTooLarge}}
	}
	return nil
}

func parsePrice(errs ValidationError, raw json.RawMessage) (model.Money, bool) {
	if len(raw) == 0 {
		errs.Add("price", MsgRequired)
		return 0, false
	}
	if string(raw) == "null" {
		errs.Add("price", MsgNull)
		return 0, false
	}

	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			errs.Add("price", MsgInvalidNumber)
			return 0, false
		}
		text = n.String()
	}

	price, err := model.ParseMoney(text, model.PriceMaxDigits)
	switch {
	case errors.Is(err, model.ErrTooManyDigits):
		errs.Add("price", maxDigitsMsg(model.PriceMaxDigits))
		return 0, false
	case errors.Is(err, model.ErrTooManyDecimals):
		errs.Add("price", MsgTwoDecimals)
		return 0, false
	case errors.Is(err, model.ErrTooManyWholeDigits):
		errs.Add("price", maxWholeDigitsMsg(model.PriceMaxDigits-model.MoneyPlaces))
		return 0, false
	case err != nil:
		errs.Add("price", MsgInvalidNumber)
		return 0, false
	case price < 0:
		errs.Add("price", minValueMsg(0))
		return 0, false
	}
	return price, true
}

func parseQuantity(errs ValidationError, raw json.RawMessage) (int, bool) {
	if len(raw) == 0 {
		errs.Add("quantity", MsgRequired)
		return 0, false
	}
	if string(raw) == "null" {
		errs.Add("quantity", MsgNull)
		return 0, false
	}

	var qty int
	if err := json.Unmarshal(raw, &qty); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			errs.Add("quantity", MsgInvalidInt)
			return 0, false
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			errs.Add("quantity", MsgInvalidInt)
			return 0, false
		}
		qty = n
	}

	if qty < 1 {
		errs.Add("quantity", minValueMsg(1))
		return 0, false
	}
	if qty > model.MaxQuantity {
		errs.Add("quantity", maxValueMsg(model.MaxQuantity))
		return 0, false
	}
	return qty, true
}
