// Package middleware содержит HTTP middleware интернет-витрины.
package middleware

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/storefront/internal/model"
	"github.com/mmeshcher/storefront/internal/repository"
	"github.com/mmeshcher/storefront/internal/respond"
)

type contextKey string

const userKey contextKey = "user"

// DefaultTokenTTL задаёт срок жизни токена, если он не указан явно.
const DefaultTokenTTL = 7 * 24 * time.Hour

var (
	// ErrUnauthenticated возвращается, если токен отсутствует, повреждён, просрочен
	// или ссылается на удалённую учётную запись.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden возвращается, если роль пользователя недостаточна для операции.
	ErrForbidden = errors.New("forbidden")
)

// UserResolver загружает учётную запись по идентификатору из токена.
type UserResolver interface {
	GetUser(ctx context.Context, id int64) (*model.User, error)
}

type tokenClaims struct {
	ID int64 `json:"id"`
	jwt.RegisteredClaims
}

// AuthMiddleware выпускает и проверяет bearer-токены и ограничивает доступ по ролям.
type AuthMiddleware struct {
	secretKey []byte
	ttl       time.Duration
	users     UserResolver
	logger    *zap.Logger
	now       func() time.Time
}

// NewAuthMiddleware создаёт новый экземпляр AuthMiddleware с указанным секретным ключом.
// При пустом ключе генерируется случайный, и выданные токены не переживают перезапуск.
func NewAuthMiddleware(secret string, ttl time.Duration, users UserResolver, logger *zap.Logger) *AuthMiddleware {
	key := []byte(secret)
	if len(key) == 0 {
		randomKey := make([]byte, 32)
		if _, err := rand.Read(randomKey); err == nil {
			key = randomKey
		} else {
			key = []byte("default-secret-key")
		}
	}

	if ttl == 0 {
		ttl = DefaultTokenTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &AuthMiddleware{
		secretKey: key,
		ttl:       ttl,
		users:     users,
		logger:    logger,
		now:       time.Now,
	}
}

// IssueToken подписывает токен для указанного пользователя.
func (a *AuthMiddleware) IssueToken(userID int64) (string, error) {
	now := a.now()
	claims := tokenClaims{
		ID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secretKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// ParseToken проверяет подпись и срок действия токена и возвращает идентификатор пользователя.
func (a *AuthMiddleware) ParseToken(token string) (int64, error) {
	var claims tokenClaims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return a.secretKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}
	if claims.ID <= 0 {
		return 0, fmt.Errorf("%w: token without user id", ErrUnauthenticated)
	}
	return claims.ID, nil
}

// Authenticate разбирает заголовок Authorization и возвращает соответствующую учётную запись.
func (a *AuthMiddleware) Authenticate(ctx context.Context, header string) (*model.User, error) {
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("%w: missing bearer token", ErrUnauthenticated)
	}

	userID, err := a.ParseToken(strings.TrimSpace(token))
	if err != nil {
		return nil, err
	}

	u, err := a.users.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, fmt.Errorf("%w: user not found", ErrUnauthenticated)
		}
		return nil, err
	}

	return u, nil
}

// Authorize проверяет, что роль пользователя удовлетворяет требуемой.
func Authorize(u *model.User, required model.Role) error {
	if u == nil {
		return ErrUnauthenticated
	}
	if required == model.RoleAdmin && u.Role != model.RoleAdmin {
		return ErrForbidden
	}
	return nil
}

// Middleware проверяет bearer-токен и добавляет пользователя в контекст запроса.
func (a *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, err := a.Authenticate(r.Context(), r.Header.Get("Authorization"))
		if err != nil {
			switch {
			case errors.Is(err, ErrUnauthenticated):
				respond.Error(w, http.StatusUnauthorized, "Not authorized")
			case errors.Is(err, repository.ErrStoreUnavailable):
				a.logger.Warn("store unavailable during authentication", zap.Error(err))
				respond.Error(w, http.StatusServiceUnavailable, "Service unavailable")
			default:
				a.logger.Error("authentication failed",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Error(err),
				)
				respond.Error(w, http.StatusInternalServerError, "Server error")
			}
			return
		}

		ctx := context.WithValue(r.Context(), userKey, u)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole пропускает запрос только пользователям с указанной ролью.
// Должен стоять после Middleware.
func RequireRole(role model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, _ := GetUserFromContext(r.Context())
			if err := Authorize(u, role); err != nil {
				if errors.Is(err, ErrForbidden) {
					respond.Error(w, http.StatusForbidden, "Admin only")
					return
				}
				respond.Error(w, http.StatusUnauthorized, "Not authorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetUserFromContext извлекает аутентифицированного пользователя из контекста запроса.
func GetUserFromContext(ctx context.Context) (*model.User, bool) {
	u, ok := ctx.Value(userKey).(*model.User)
	return u, ok && u != nil
}
