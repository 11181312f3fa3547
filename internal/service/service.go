// Package service реализует бизнес-логику интернет-витрины.
package service

import (
	"context"
	"errors"
	"io"

	"github.com/mmeshcher/storefront/internal/model"
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Ping(ctx context.Context) error
	Close() error

	CreateUser(ctx context.Context, name, email string, passwordHash []byte) (*model.User, error)
	UpsertAdmin(ctx context.Context, name, email string, passwordHash []byte) (*model.User, bool, error)
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)

	CreateProduct(ctx context.Context, p *model.Product) (*model.Product, error)
	ReplaceProducts(ctx context.Context, products []model.Product) (int, error)
	GetProduct(ctx context.Context, id int64) (*model.Product, error)
	GetProductsByIDs(ctx context.Context, ids []int64) (map[int64]model.Product, error)
	ListProducts(ctx context.Context, filter model.ProductFilter) ([]model.Product, error)
	UpdateProduct(ctx context.Context, id int64, patch model.ProductPatch) (*model.Product, error)
	DeleteProduct(ctx context.Context, id int64) error
	AddReview(ctx context.Context, productID int64, review model.Review) (*model.Product, error)

	CreateOrder(ctx context.Context, order *model.Order) (*model.Order, error)
	GetOrder(ctx context.Context, id int64) (*model.Order, error)
	GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error)
	GetAllOrders(ctx context.Context) ([]model.Order, error)
	UpdateOrderStatus(ctx context.Context, id int64, status model.OrderStatus) (*model.Order, error)
}

// ImageHost загружает изображения товаров во внешнее хранилище и возвращает публичный URL.
type ImageHost interface {
	Upload(ctx context.Context, filename string, r io.Reader) (string, error)
}

var (
	// ErrValidation помечает некорректные входные данные. Конкретная причина передаётся через ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidProduct возвращается, если корзина ссылается на несуществующий товар.
	ErrInvalidProduct = errors.New("invalid product in cart")
	// ErrInvalidStatus возвращается для неизвестного статуса заказа.
	ErrInvalidStatus = errors.New("invalid order status")
	// ErrInvalidCredentials возвращается при неверной паре email/пароль.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// ValidationError описывает ошибку валидации с сообщением, пригодным для показа клиенту.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Message
}

// Is позволяет сопоставлять ValidationError с ErrValidation через errors.Is.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(msg string) error {
	return &ValidationError{Message: msg}
}

// Option настраивает Service.
type Option func(*Service)

// WithImageHost подключает хранилище изображений. Без него загрузка файлов отклоняется.
func WithImageHost(h ImageHost) Option {
	return func(s *Service) {
		s.images = h
	}
}

// Service содержит бизнес-логику витрины.
type Service struct {
	repo   Repository
	images ImageHost
}

// NewService создаёт новый сервис с указанным репозиторием.
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{repo: repo}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ping проверяет доступность хранилища.
func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}
