package service

import (
	"context"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/storefront/internal/model"
)

// maxPrice соответствует диапазону колонки products.price NUMERIC(12,2).
var maxPrice = decimal.New(1, 10)

// ImageUpload описывает файл изображения, переданный вместе с товаром.
type ImageUpload struct {
	Filename string
	Body     io.Reader
}

// ListProducts возвращает товары каталога по фильтру.
func (s *Service) ListProducts(ctx context.Context, filter model.ProductFilter) ([]model.Product, error) {
	filter.Query = strings.TrimSpace(filter.Query)
	filter.Brand = strings.TrimSpace(filter.Brand)
	return s.repo.ListProducts(ctx, filter)
}

// GetProduct возвращает товар по идентификатору.
func (s *Service) GetProduct(ctx context.Context, id int64) (*model.Product, error) {
	return s.repo.GetProduct(ctx, id)
}

// CreateProduct создаёт товар. Загруженное изображение имеет приоритет над ссылкой из запроса.
func (s *Service) CreateProduct(ctx context.Context, in model.ProductPatch, image *ImageUpload) (*model.Product, error) {
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
		return nil, invalid("Name is required")
	}
	if in.Brand == nil || strings.TrimSpace(*in.Brand) == "" {
		return nil, invalid("Brand is required")
	}
	if in.Price == nil {
		return nil, invalid("Price is required")
	}
	if err := validatePatch(in); err != nil {
		return nil, err
	}

	p := &model.Product{
		Name:     strings.TrimSpace(*in.Name),
		Brand:    strings.TrimSpace(*in.Brand),
		Notes:    in.Notes,
		Category: model.DefaultCategory,
		Price:    *in.Price,
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.Category != nil && strings.TrimSpace(*in.Category) != "" {
		p.Category = strings.TrimSpace(*in.Category)
	}
	if in.Stock != nil {
		p.Stock = *in.Stock
	}
	if in.Image != nil {
		p.Image = *in.Image
	}

	if image != nil {
		url, err := s.uploadImage(ctx, image)
		if err != nil {
			return nil, err
		}
		p.Image = url
	}

	return s.repo.CreateProduct(ctx, p)
}

// UpdateProduct применяет частичное обновление товара.
func (s *Service) UpdateProduct(ctx context.Context, id int64, patch model.ProductPatch, image *ImageUpload) (*model.Product, error) {
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return nil, invalid("Name must not be empty")
	}
	if patch.Brand != nil && strings.TrimSpace(*patch.Brand) == "" {
		return nil, invalid("Brand must not be empty")
	}
	if err := validatePatch(patch); err != nil {
		return nil, err
	}

	if image != nil {
		// Товар должен существовать до загрузки файла.
		if _, err := s.repo.GetProduct(ctx, id); err != nil {
			return nil, err
		}
		url, err := s.uploadImage(ctx, image)
		if err != nil {
			return nil, err
		}
		patch.Image = &url
	}

	return s.repo.UpdateProduct(ctx, id, patch)
}

// DeleteProduct удаляет товар.
func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	return s.repo.DeleteProduct(ctx, id)
}

// ReplaceCatalog заменяет каталог целиком. Используется командой начального наполнения.
func (s *Service) ReplaceCatalog(ctx context.Context, products []model.Product) (int, error) {
	for i := range products {
		p := &products[i]
		if strings.TrimSpace(p.Name) == "" || strings.TrimSpace(p.Brand) == "" {
			return 0, invalid(fmt.Sprintf("product #%d: name and brand are required", i+1))
		}
		if p.Price.IsNegative() || p.Stock < 0 {
			return 0, invalid(fmt.Sprintf("product #%d: price and stock must not be negative", i+1))
		}
		if msg := checkPrice(p.Price); msg != "" {
			return 0, invalid(fmt.Sprintf("product #%d: price %s", i+1, msg))
		}
		if p.Stock > math.MaxInt32 {
			return 0, invalid(fmt.Sprintf("product #%d: stock is too large", i+1))
		}
		if p.Category == "" {
			p.Category = model.DefaultCategory
		}
	}
	return s.repo.ReplaceProducts(ctx, products)
}

// AddReview добавляет отзыв пользователя и возвращает товар с пересчитанным рейтингом.
func (s *Service) AddReview(ctx context.Context, userID, productID int64, rating int, comment string) (*model.Product, error) {
	if rating < 1 || rating > 5 {
		return nil, invalid("Rating must be between 1 and 5")
	}

	return s.repo.AddReview(ctx, productID, model.Review{
		UserID:  userID,
		Rating:  rating,
		Comment: strings.TrimSpace(comment),
	})
}

func validatePatch(p model.ProductPatch) error {
	if p.Price != nil {
		if p.Price.IsNegative() {
			return invalid("Price must not be negative")
		}
		if msg := checkPrice(*p.Price); msg != "" {
			return invalid("Price " + msg)
		}
	}
	if p.Stock != nil {
		if *p.Stock < 0 {
			return invalid("Stock must not be negative")
		}
		if *p.Stock > math.MaxInt32 {
			return invalid("Stock is too large")
		}
	}
	return nil
}

// checkPrice проверяет, что цена хранится без округления.
func checkPrice(price decimal.Decimal) string {
	if !price.Equal(price.Round(2)) {
		return "must have at most two decimal places"
	}
	if price.GreaterThanOrEqual(maxPrice) {
		return "is too large"
	}
	return ""
}

func (s *Service) uploadImage(ctx context.Context, image *ImageUpload) (string, error) {
	if s.images == nil {
		return "", invalid("Image upload is not configured")
	}

	url, err := s.images.Upload(ctx, image.Filename, image.Body)
	if err != nil {
		return "", fmt.Errorf("upload image: %w", err)
	}
	return url, nil
}
