package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/storefront/internal/model"
)

// MaxQuantity ограничивает количество одной позиции корзины.
const MaxQuantity = 10000

// maxOrderTotal соответствует диапазону колонки orders.total NUMERIC(14,2).
var maxOrderTotal = decimal.New(1, 12)

var (
	ordersPlaced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_orders_placed_total",
		Help: "Total number of orders placed",
	})

	orderStatusChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_order_status_changes_total",
		Help: "Total number of order status changes by target status",
	}, []string{"status"})
)

// OrderInput описывает запрос на оформление заказа. Цены из клиентского запроса сюда не попадают.
type OrderInput struct {
	Items         []model.CartItem
	Address       string
	PaymentMethod string
}

// PlaceOrder оценивает корзину по текущим ценам каталога и сохраняет заказ со статусом pending.
// Если хотя бы один товар не найден, заказ не создаётся.
func (s *Service) PlaceOrder(ctx context.Context, userID int64, in OrderInput) (*model.Order, error) {
	if len(in.Items) == 0 {
		return nil, invalid("No items")
	}

	address := strings.TrimSpace(in.Address)
	if address == "" {
		return nil, invalid("Address is required")
	}

	ids := make([]int64, 0, len(in.Items))
	for _, it := range in.Items {
		if it.Quantity <= 0 {
			return nil, invalid("Quantity must be a positive integer")
		}
		if it.Quantity > MaxQuantity {
			return nil, invalid(fmt.Sprintf("Quantity must not exceed %d", MaxQuantity))
		}
		ids = append(ids, it.ProductID)
	}

	catalog, err := s.repo.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	lines, total, err := priceCart(in.Items, catalog)
	if err != nil {
		return nil, err
	}
	if total.GreaterThanOrEqual(maxOrderTotal) {
		return nil, invalid("Order total is too large")
	}

	payment := strings.TrimSpace(in.PaymentMethod)
	if payment == "" {
		payment = model.PaymentCashOnDelivery
	}

	order, err := s.repo.CreateOrder(ctx, &model.Order{
		UserID:        userID,
		Items:         lines,
		Total:         total,
		Status:        model.OrderStatusPending,
		Address:       address,
		PaymentMethod: payment,
	})
	if err != nil {
		return nil, err
	}

	ordersPlaced.Inc()
	return order, nil
}

// priceCart фиксирует цену каждой позиции по каталогу и считает итог.
func priceCart(items []model.CartItem, catalog map[int64]model.Product) ([]model.OrderLine, decimal.Decimal, error) {
	lines := make([]model.OrderLine, 0, len(items))
	total := decimal.Zero

	for _, it := range items {
		p, ok := catalog[it.ProductID]
		if !ok {
			return nil, decimal.Zero, fmt.Errorf("%w: %d", ErrInvalidProduct, it.ProductID)
		}

		line := model.OrderLine{
			ProductID: p.ID,
			Name:      p.Name,
			Quantity:  it.Quantity,
			Price:     p.Price,
		}
		total = total.Add(line.Subtotal())
		lines = append(lines, line)
	}

	return lines, total, nil
}

// SetOrderStatus переводит заказ в указанный статус. Допустим любой переход между известными статусами.
func (s *Service) SetOrderStatus(ctx context.Context, orderID int64, status string) (*model.Order, error) {
	st, ok := model.ParseOrderStatus(status)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	order, err := s.repo.UpdateOrderStatus(ctx, orderID, st)
	if err != nil {
		return nil, err
	}

	orderStatusChanges.WithLabelValues(string(st)).Inc()
	return order, nil
}

// GetOrder возвращает заказ по идентификатору.
func (s *Service) GetOrder(ctx context.Context, orderID int64) (*model.Order, error) {
	return s.repo.GetOrder(ctx, orderID)
}

// GetOrdersByUser возвращает заказы пользователя.
func (s *Service) GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	return s.repo.GetOrdersByUser(ctx, userID)
}

// GetAllOrders возвращает все заказы витрины.
func (s *Service) GetAllOrders(ctx context.Context) ([]model.Order, error) {
	return s.repo.GetAllOrders(ctx)
}
