package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/storefront/internal/model"
	"github.com/mmeshcher/storefront/internal/repository"
)

// memRepo хранит данные в памяти и повторяет контракт PostgresRepository.
type memRepo struct {
	mu sync.Mutex

	nextID   int64
	users    map[int64]*model.User
	products map[int64]*model.Product
	orders   map[int64]*model.Order

	createOrderCalls int
	err              error
}

func newMemRepo() *memRepo {
	return &memRepo{
		users:    make(map[int64]*model.User),
		products: make(map[int64]*model.Product),
		orders:   make(map[int64]*model.Order),
	}
}

func (m *memRepo) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memRepo) Ping(ctx context.Context) error { return m.err }
func (m *memRepo) Close() error                   { return nil }

func (m *memRepo) findByEmail(email string) *model.User {
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return u
		}
	}
	return nil
}

func (m *memRepo) CreateUser(ctx context.Context, name, email string, passwordHash []byte) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.findByEmail(email) != nil {
		return nil, repository.ErrUserExists
	}
	u := &model.User{ID: m.id(), Name: name, Email: email, PasswordHash: passwordHash, Role: model.RoleCustomer, CreatedAt: time.Now()}
	m.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (m *memRepo) UpsertAdmin(ctx context.Context, name, email string, passwordHash []byte) (*model.User, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if u := m.findByEmail(email); u != nil {
		u.Role = model.RoleAdmin
		cp := *u
		return &cp, false, nil
	}
	u := &model.User{ID: m.id(), Name: name, Email: email, PasswordHash: passwordHash, Role: model.RoleAdmin}
	m.users[u.ID] = u
	cp := *u
	return &cp, true, nil
}

func (m *memRepo) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memRepo) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u := m.findByEmail(email)
	if u == nil {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memRepo) CreateProduct(ctx context.Context, p *model.Product) (*model.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *p
	cp.ID = m.id()
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	m.products[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (m *memRepo) ReplaceProducts(ctx context.Context, products []model.Product) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.products = make(map[int64]*model.Product)
	for _, p := range products {
		cp := p
		cp.ID = m.id()
		m.products[cp.ID] = &cp
	}
	return len(products), nil
}

func (m *memRepo) GetProduct(ctx context.Context, id int64) (*model.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memRepo) GetProductsByIDs(ctx context.Context, ids []int64) (map[int64]model.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}
	out := make(map[int64]model.Product, len(ids))
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out[id] = *p
		}
	}
	return out, nil
}

func (m *memRepo) ListProducts(ctx context.Context, filter model.ProductFilter) ([]model.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []model.Product
	for _, p := range m.products {
		if filter.Query != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(filter.Query)) {
			continue
		}
		if filter.Brand != "" && p.Brand != filter.Brand {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func (m *memRepo) UpdateProduct(ctx context.Context, id int64, patch model.ProductPatch) (*model.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Brand != nil {
		p.Brand = *patch.Brand
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Notes != nil {
		p.Notes = patch.Notes
	}
	if patch.Category != nil {
		p.Category = *patch.Category
	}
	if patch.Price != nil {
		p.Price = *patch.Price
	}
	if patch.Stock != nil {
		p.Stock = *patch.Stock
	}
	if patch.Image != nil {
		p.Image = *patch.Image
	}
	cp := *p
	return &cp, nil
}

func (m *memRepo) DeleteProduct(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.products[id]; !ok {
		return repository.ErrProductNotFound
	}
	delete(m.products, id)
	return nil
}

func (m *memRepo) AddReview(ctx context.Context, productID int64, review model.Review) (*model.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.products[productID]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	sum := 0
	for _, rv := range p.Reviews {
		if rv.UserID == review.UserID {
			return nil, repository.ErrAlreadyReviewed
		}
		sum += rv.Rating
	}
	review.ID = m.id()
	p.Reviews = append(p.Reviews, review)
	p.NumReviews = len(p.Reviews)
	p.Rating = float64(sum+review.Rating) / float64(p.NumReviews)
	cp := *p
	return &cp, nil
}

func (m *memRepo) CreateOrder(ctx context.Context, order *model.Order) (*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.createOrderCalls++
	cp := *order
	cp.ID = m.id()
	cp.Items = append([]model.OrderLine(nil), order.Items...)
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	m.orders[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (m *memRepo) GetOrder(ctx context.Context, id int64) (*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memRepo) GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []model.Order
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *memRepo) GetAllOrders(ctx context.Context) ([]model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]model.Order, 0, len(m.orders))
	for _, o := range m.orders {
		out = append(out, *o)
	}
	return out, nil
}

func (m *memRepo) UpdateOrderStatus(ctx context.Context, id int64, status model.OrderStatus) (*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	o.Status = status
	o.UpdatedAt = time.Now()
	cp := *o
	return &cp, nil
}

type stubImageHost struct {
	url  string
	err  error
	name string
	body string
}

func (s *stubImageHost) Upload(ctx context.Context, filename string, r io.Reader) (string, error) {
	s.name = filename
	b, _ := io.ReadAll(r)
	s.body = string(b)
	return s.url, s.err
}

func TestRegisterUser(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	svc := NewService(repo)

	u, err := svc.RegisterUser(ctx, "  Ann ", " ann@example.com ", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "Ann", u.Name)
	assert.Equal(t, "ann@example.com", u.Email)
	assert.Equal(t, model.RoleCustomer, u.Role)
	assert.NoError(t, bcrypt.CompareHashAndPassword(u.PasswordHash, []byte("secret1")))

	_, err = svc.RegisterUser(ctx, "Ann", "ANN@example.com", "secret1")
	assert.ErrorIs(t, err, repository.ErrUserExists)
}

func TestRegisterUser_Validation(t *testing.T) {
	tests := []struct {
		name     string
		user     string
		email    string
		password string
		want     string
	}{
		{name: "no name", user: " ", email: "a@b.co", password: "secret1", want: "Name is required"},
		{name: "bad email", user: "Ann", email: "not-an-email", password: "secret1", want: "Valid email is required"},
		{name: "short password", user: "Ann", email: "a@b.co", password: "12345", want: "Password must be at least 6 characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMemRepo()
			_, err := NewService(repo).RegisterUser(context.Background(), tt.user, tt.email, tt.password)

			require.ErrorIs(t, err, ErrValidation)
			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.want, ve.Message)
			assert.Empty(t, repo.users)
		})
	}
}

func TestAuthenticateUser(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemRepo())

	registered, err := svc.RegisterUser(ctx, "Ann", "ann@example.com", "secret1")
	require.NoError(t, err)

	u, err := svc.AuthenticateUser(ctx, "ann@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, u.ID)

	_, err = svc.AuthenticateUser(ctx, "ann@example.com", "wrong-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.AuthenticateUser(ctx, "nobody@example.com", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestEnsureAdmin(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	svc := NewService(repo)

	customer, err := svc.RegisterUser(ctx, "Ann", "ann@example.com", "secret1")
	require.NoError(t, err)

	admin, created, err := svc.EnsureAdmin(ctx, "Admin", "ann@example.com", "Admin@123")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, customer.ID, admin.ID)
	assert.Equal(t, model.RoleAdmin, admin.Role)

	fresh, created, err := svc.EnsureAdmin(ctx, "Admin", "admin@example.com", "Admin@123")
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, fresh.IsAdmin())

	_, _, err = svc.EnsureAdmin(ctx, "Admin", "admin@example.com", "123")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestPingAndClose(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)

	assert.NoError(t, svc.Ping(context.Background()))
	repo.err = repository.ErrStoreUnavailable
	assert.ErrorIs(t, svc.Ping(context.Background()), repository.ErrStoreUnavailable)
	assert.NoError(t, svc.Close())
}
