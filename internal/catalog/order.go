package catalog

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"catalog-service/internal/domain"
	"catalog-service/internal/logger"
	"catalog-service/internal/query"
	"catalog-service/internal/schema"
	"catalog-service/internal/softdelete"
)

// OrderLine is one requested product of an order.
type OrderLine struct {
	ProductID int64
	Quantity  int32
}

// PlaceOrderInput is a guest checkout request.
type PlaceOrderInput struct {
	CustomerEmail string
	Lines         []OrderLine
}

// PlacedOrder is a stored order and the confirmation token that grants access to it.
// The token is only ever returned here; the store keeps its hash.
type PlacedOrder struct {
	Order *domain.Order `json:"order"`
	Token string        `json:"confirmation_token"`
}

var orderStatuses = map[domain.OrderStatus]bool{
	domain.OrderStatusPending:   true,
	domain.OrderStatusPaid:      true,
	domain.OrderStatusShipped:   true,
	domain.OrderStatusCancelled: true,
}

// OrderService places and reads guest orders.
type OrderService struct {
	orders     *softdelete.Mediator[domain.Order]
	items      *softdelete.Mediator[domain.OrderItem]
	products   *softdelete.Mediator[domain.Product]
	bcryptCost int
	// decoyHash is compared against when no order matches, so a miss costs
	// as much as a wrong token.
	decoyHash  []byte
	newToken   func() string
	validate   *validator.Validate
	log        *logger.Logger
}

// OrderOption configures an OrderService.
type OrderOption func(*OrderService)

// WithBcryptCost sets the cost used to hash confirmation tokens.
func WithBcryptCost(cost int) OrderOption {
	return func(s *OrderService) { s.bcryptCost = cost }
}

// WithTokenSource replaces the confirmation token generator.
func WithTokenSource(next func() string) OrderOption {
	return func(s *OrderService) { s.newToken = next }
}

// NewOrderService builds an OrderService.
func NewOrderService(
	orders *softdelete.Mediator[domain.Order],
	items *softdelete.Mediator[domain.OrderItem],
	products *softdelete.Mediator[domain.Product],
	log *logger.Logger,
	opts ...OrderOption,
) *OrderService {
	s := &OrderService{
		orders:     orders,
		items:      items,
		products:   products,
		bcryptCost: bcrypt.DefaultCost,
		newToken:   uuid.NewString,
		validate:   validator.New(),
		log:        log.WithComponent("order-service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	decoy, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), s.bcryptCost)
	if err != nil {
		s.log.Warnw("decoy token hash unavailable", "cost", s.bcryptCost, "error", err)
	}
	s.decoyHash = decoy
	return s
}

// Place stores a pending order for live, active products at their current prices.
func (s *OrderService) Place(ctx context.Context, in PlaceOrderInput) (*PlacedOrder, error) {
	if err := s.validate.Var(in.CustomerEmail, "required,email"); err != nil {
		return nil, invalid("customer_email %q is not a valid address", in.CustomerEmail)
	}
	if len(in.Lines) == 0 {
		return nil, invalid("an order needs at least one item")
	}
	ids := make([]int64, 0, len(in.Lines))
	for _, l := range in.Lines {
		if l.Quantity <= 0 {
			return nil, invalid("quantity of product %d must be positive", l.ProductID)
		}
		ids = append(ids, l.ProductID)
	}

	products, err := s.products.FindMany(ctx, query.FindArgs{
		Where:  query.NewWhere(query.In(schema.ColumnID, ids)),
		Select: []string{"id", "price", "is_active"},
	}, softdelete.ReadOptions{})
	if err != nil {
		return nil, err
	}
	prices := make(map[int64]decimal.Decimal, len(products))
	for _, p := range products {
		if p.IsActive {
			prices[p.ID] = p.Price
		}
	}

	total := decimal.Zero
	for _, l := range in.Lines {
		price, ok := prices[l.ProductID]
		if !ok {
			return nil, invalid("product %d is not available", l.ProductID)
		}
		total = total.Add(price.Mul(decimal.NewFromInt32(l.Quantity)))
	}

	token := s.newToken()
	hash, err := bcrypt.GenerateFromPassword([]byte(token), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("catalog: hash confirmation token: %w", err)
	}
	hashStr := string(hash)

	order, err := s.orders.Create(ctx, &domain.Order{
		CustomerEmail:         in.CustomerEmail,
		Status:                domain.OrderStatusPending,
		Total:                 total,
		ConfirmationTokenHash: &hashStr,
	})
	if err != nil {
		return nil, err
	}
	for _, l := range in.Lines {
		item, err := s.items.Create(ctx, &domain.OrderItem{
			OrderID:   order.ID,
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: prices[l.ProductID],
		})
		if err != nil {
			if _, cleanupErr := s.Delete(ctx, order.ID); cleanupErr != nil {
				s.log.Errorw("failed to remove partial order", "id", order.ID, "error", cleanupErr)
			}
			return nil, err
		}
		order.Items = append(order.Items, *item)
	}

	s.log.Infow("order placed", "id", order.ID, "items", len(order.Items), "total", total.StringFixed(2))
	return &PlacedOrder{Order: order, Token: token}, nil
}

// Get returns order id with its items and their products, provided token is
// the order's confirmation token. Items whose product was deleted keep a nil Product.
// A missing order fails with ErrInvalidToken like a wrong token does, so a
// caller without the token cannot tell which ids exist.
func (s *OrderService) Get(ctx context.Context, id int64, token string) (*domain.Order, error) {
	key := query.ByID(id)
	head, err := s.orders.FindUnique(ctx, query.FindUniqueArgs{
		Where:  key,
		Select: []string{schema.ColumnID, "confirmation_token_hash"},
	}, softdelete.ReadOptions{})
	if err != nil {
		return nil, err
	}
	hash := s.decoyHash
	if head != nil && head.ConfirmationTokenHash != nil {
		hash = []byte(*head.ConfirmationTokenHash)
	}
	mismatch := bcrypt.CompareHashAndPassword(hash, []byte(token)) != nil
	if mismatch || head == nil || head.ConfirmationTokenHash == nil {
		return nil, fmt.Errorf("catalog: order %d: %w", id, ErrInvalidToken)
	}

	order, err := s.orders.FindUnique(ctx, query.FindUniqueArgs{
		Where: key,
		Include: query.Include{
			"items": {Include: query.Include{"product": query.Terminal()}},
		},
	}, softdelete.ReadOptions{})
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, notFound(schema.Order, key)
	}
	return order, nil
}

// SetStatus moves order id to status.
func (s *OrderService) SetStatus(ctx context.Context, id int64, status domain.OrderStatus) (*domain.Order, error) {
	if !orderStatuses[status] {
		return nil, invalid("unknown order status %q", status)
	}
	return s.orders.Update(ctx, query.ByID(id), query.NewPatch().Set("status", string(status)))
}

// Delete removes order id and its items for good.
func (s *OrderService) Delete(ctx context.Context, id int64) (*domain.Order, error) {
	if _, err := s.items.DeleteMany(ctx, query.NewWhere(query.Eq("order_id", id))); err != nil {
		return nil, fmt.Errorf("catalog: delete items of order %d: %w", id, err)
	}
	order, err := s.orders.Delete(ctx, query.ByID(id))
	if err != nil {
		return nil, err
	}
	s.log.Infow("order deleted", "id", id)
	return order, nil
}
