// Package model содержит доменные сущности интернет-витрины.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Role описывает уровень доступа учётной записи.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// User представляет зарегистрированного покупателя или администратора.
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash []byte
	Role         Role
	CreatedAt    time.Time
}

// IsAdmin сообщает, обладает ли пользователь правами администратора.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// DefaultCategory присваивается товару, если категория не указана.
const DefaultCategory = "Perfume"

// Product описывает товар каталога.
type Product struct {
	ID          int64
	Name        string
	Brand       string
	Description string
	Notes       []string
	Category    string
	Price       decimal.Decimal
	Stock       int
	Image       string
	Rating      float64
	NumReviews  int
	Reviews     []Review
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Review описывает отзыв покупателя о товаре.
type Review struct {
	ID        int64
	UserID    int64
	UserName  string
	Rating    int
	Comment   string
	CreatedAt time.Time
}

// ProductFilter задаёт условия выборки каталога. Пустые поля не участвуют в фильтрации.
type ProductFilter struct {
	// Query ищется как подстрока в названии без учёта регистра.
	Query string
	// Brand сравнивается точно.
	Brand string
}

// ProductPatch содержит частичное обновление товара: nil означает «не менять».
type ProductPatch struct {
	Name        *string
	Brand       *string
	Description *string
	Notes       []string
	Category    *string
	Price       *decimal.Decimal
	Stock       *int
	Image       *string
}

// OrderStatus описывает стадию жизненного цикла заказа.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
)

// ParseOrderStatus возвращает статус по строковому значению и признак того, что оно известно.
func ParseOrderStatus(s string) (OrderStatus, bool) {
	switch st := OrderStatus(s); st {
	case OrderStatusPending, OrderStatusPaid, OrderStatusShipped, OrderStatusDelivered:
		return st, true
	default:
		return "", false
	}
}

// PaymentCashOnDelivery используется, если способ оплаты не передан.
const PaymentCashOnDelivery = "cod"

// CartItem описывает позицию корзины в том виде, в котором её прислал клиент.
type CartItem struct {
	ProductID int64
	Quantity  int
}

// OrderLine описывает позицию заказа с ценой, зафиксированной в момент оформления.
type OrderLine struct {
	ProductID int64
	Name      string
	Quantity  int
	Price     decimal.Decimal
}

// Subtotal возвращает стоимость позиции.
func (l OrderLine) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// OrderOwner содержит публичные данные владельца заказа для административных выборок.
type OrderOwner struct {
	Name  string
	Email string
}

// Order описывает оформленный заказ.
type Order struct {
	ID            int64
	UserID        int64
	Owner         *OrderOwner
	Items         []OrderLine
	Total         decimal.Decimal
	Status        OrderStatus
	Address       string
	PaymentMethod string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
