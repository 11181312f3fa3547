package handler

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/mmeshcher/storefront/internal/middleware"
	"github.com/mmeshcher/storefront/internal/repository"
	"github.com/mmeshcher/storefront/internal/respond"
	"github.com/mmeshcher/storefront/internal/service"
)

type errorMapping struct {
	target  error
	status  int
	message string
}

var errorMappings = []errorMapping{
	{errInvalidBody, http.StatusBadRequest, "Invalid request body"},
	{repository.ErrProductNotFound, http.StatusNotFound, "Product not found"},
	{repository.ErrOrderNotFound, http.StatusNotFound, "Order not found"},
	{repository.ErrUserNotFound, http.StatusNotFound, "User not found"},
	{service.ErrInvalidProduct, http.StatusBadRequest, "Invalid product in cart"},
	{service.ErrInvalidStatus, http.StatusBadRequest, "Invalid order status"},
	{service.ErrInvalidCredentials, http.StatusBadRequest, "Invalid credentials"},
	{repository.ErrUserExists, http.StatusBadRequest, "Email already registered"},
	{repository.ErrAlreadyReviewed, http.StatusBadRequest, "Product already reviewed"},
	{middleware.ErrUnauthenticated, http.StatusUnauthorized, "Not authorized"},
	{middleware.ErrForbidden, http.StatusForbidden, "Admin only"},
	{repository.ErrStoreUnavailable, http.StatusServiceUnavailable, "Service unavailable"},
}

// writeError переводит ошибку бизнес-логики в HTTP-ответ.
// Внутренние подробности клиенту не передаются.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *service.ValidationError
	if errors.As(err, &ve) {
		respond.Error(w, http.StatusBadRequest, ve.Message)
		return
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			if m.status == http.StatusServiceUnavailable {
				h.logger.Warn("store unavailable", zap.String("path", r.URL.Path), zap.Error(err))
			}
			respond.Error(w, m.status, m.message)
			return
		}
	}

	h.logger.Error("unexpected error",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	respond.Error(w, http.StatusInternalServerError, "Server error")
}
