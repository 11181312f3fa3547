// Package handler содержит HTTP-обработчики API интернет-витрины.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/storefront/internal/middleware"
	"github.com/mmeshcher/storefront/internal/model"
	"github.com/mmeshcher/storefront/internal/respond"
	"github.com/mmeshcher/storefront/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	Ping(ctx context.Context) error

	RegisterUser(ctx context.Context, name, email, password string) (*model.User, error)
	AuthenticateUser(ctx context.Context, email, password string) (*model.User, error)
	GetUser(ctx context.Context, id int64) (*model.User, error)

	ListProducts(ctx context.Context, filter model.ProductFilter) ([]model.Product, error)
	GetProduct(ctx context.Context, id int64) (*model.Product, error)
	CreateProduct(ctx context.Context, in model.ProductPatch, image *service.ImageUpload) (*model.Product, error)
	UpdateProduct(ctx context.Context, id int64, patch model.ProductPatch, image *service.ImageUpload) (*model.Product, error)
	DeleteProduct(ctx context.Context, id int64) error
	AddReview(ctx context.Context, userID, productID int64, rating int, comment string) (*model.Product, error)

	PlaceOrder(ctx context.Context, userID int64, in service.OrderInput) (*model.Order, error)
	GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error)
	GetAllOrders(ctx context.Context) ([]model.Order, error)
	SetOrderStatus(ctx context.Context, orderID int64, status string) (*model.Order, error)
}

// Options задаёт ограничения HTTP-слоя.
type Options struct {
	// AuthRateLimit ограничивает число запросов в секунду к /auth. 0 отключает ограничение.
	AuthRateLimit float64
	AuthRateBurst int
	// MaxUploadBytes ограничивает размер тела multipart-запроса.
	MaxUploadBytes int64
}

const defaultMaxUploadBytes = 5 << 20

// Handler реализует HTTP-обработчики API интернет-витрины.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
	opts           Options
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware, opts Options) *Handler {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
		opts:           opts,
	}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type authResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
		Role:  string(u.Role),
	}
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errInvalidBody
	}
	return nil
}

// Register обрабатывает регистрацию нового покупателя и сразу выдаёт токен.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	u, err := h.service.RegisterUser(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.respondWithToken(w, r, http.StatusCreated, u)
}

// Login выполняет аутентификацию пользователя по email и паролю.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	u, err := h.service.AuthenticateUser(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.respondWithToken(w, r, http.StatusOK, u)
}

func (h *Handler) respondWithToken(w http.ResponseWriter, r *http.Request, status int, u *model.User) {
	token, err := h.authMiddleware.IssueToken(u.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respond.JSON(w, status, authResponse{Token: token, User: toUserResponse(u)})
}

// Me возвращает профиль текущего пользователя.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	u, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		h.writeError(w, r, middleware.ErrUnauthenticated)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]userResponse{"user": toUserResponse(u)})
}

// Health сообщает о готовности сервиса обслуживать запросы.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.service.Ping(ctx); err != nil {
		h.logger.Warn("health check failed", zap.Error(err))
		respond.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	respond.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func currentUser(r *http.Request) (*model.User, error) {
	u, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		return nil, middleware.ErrUnauthenticated
	}
	return u, nil
}

var errInvalidBody = errors.New("invalid request body")
