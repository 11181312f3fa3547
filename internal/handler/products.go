package handler

import (
	"encoding/json"
	"errors"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/storefront/internal/model"
	"github.com/mmeshcher/storefront/internal/repository"
	"github.com/mmeshcher/storefront/internal/respond"
	"github.com/mmeshcher/storefront/internal/service"
)

type productRequest struct {
	Name        *string          `json:"name"`
	Brand       *string          `json:"brand"`
	Description *string          `json:"description"`
	Notes       *[]string        `json:"notes"`
	Category    *string          `json:"category"`
	Price       *decimal.Decimal `json:"price"`
	Stock       *int             `json:"stock"`
	Image       *string          `json:"image"`
}

func (p productRequest) patch() model.ProductPatch {
	patch := model.ProductPatch{
		Name:        p.Name,
		Brand:       p.Brand,
		Description: p.Description,
		Category:    p.Category,
		Price:       p.Price,
		Stock:       p.Stock,
		Image:       p.Image,
	}
	if p.Notes != nil {
		patch.Notes = append([]string{}, *p.Notes...)
	}
	return patch
}

type reviewResponse struct {
	ID        int64     `json:"id"`
	User      int64     `json:"user"`
	Name      string    `json:"name"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"createdAt"`
}

type productResponse struct {
	ID          int64            `json:"id"`
	Name        string           `json:"name"`
	Brand       string           `json:"brand"`
	Description string           `json:"description"`
	Notes       []string         `json:"notes"`
	Category    string           `json:"category"`
	Price       json.Number      `json:"price"`
	Stock       int              `json:"stock"`
	Image       string           `json:"image"`
	Rating      float64          `json:"rating"`
	NumReviews  int              `json:"numReviews"`
	Reviews     []reviewResponse `json:"reviews"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// money отображает денежную сумму числом с двумя знаками после запятой.
func money(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

func toProductResponse(p *model.Product) productResponse {
	resp := productResponse{
		ID:          p.ID,
		Name:        p.Name,
		Brand:       p.Brand,
		Description: p.Description,
		Notes:       p.Notes,
		Category:    p.Category,
		Price:       money(p.Price),
		Stock:       p.Stock,
		Image:       p.Image,
		Rating:      p.Rating,
		NumReviews:  p.NumReviews,
		Reviews:     make([]reviewResponse, 0, len(p.Reviews)),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	if resp.Notes == nil {
		resp.Notes = []string{}
	}
	for _, rv := range p.Reviews {
		resp.Reviews = append(resp.Reviews, reviewResponse{
			ID:        rv.ID,
			User:      rv.UserID,
			Name:      rv.UserName,
			Rating:    rv.Rating,
			Comment:   rv.Comment,
			CreatedAt: rv.CreatedAt,
		})
	}
	return resp
}

// pathID разбирает числовой идентификатор из пути. Некорректный идентификатор
// обрабатывается как отсутствующая запись.
func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// ListProducts возвращает каталог с фильтрами q (подстрока названия) и brand.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	filter := model.ProductFilter{
		Query: r.URL.Query().Get("q"),
		Brand: r.URL.Query().Get("brand"),
	}

	products, err := h.service.ListProducts(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := make([]productResponse, 0, len(products))
	for i := range products {
		resp = append(resp, toProductResponse(&products[i]))
	}
	respond.JSON(w, http.StatusOK, resp)
}

// GetProduct возвращает товар вместе с отзывами.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.writeError(w, r, repository.ErrProductNotFound)
		return
	}

	p, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, toProductResponse(p))
}

// CreateProduct создаёт товар из JSON или multipart-формы с файлом image.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	req, image, cleanup, err := h.parseProductRequest(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	defer cleanup()

	p, err := h.service.CreateProduct(r.Context(), req.patch(), image)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, toProductResponse(p))
}

// UpdateProduct частично обновляет товар.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.writeError(w, r, repository.ErrProductNotFound)
		return
	}

	req, image, cleanup, err := h.parseProductRequest(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	defer cleanup()

	p, err := h.service.UpdateProduct(r.Context(), id, req.patch(), image)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, toProductResponse(p))
}

// DeleteProduct удаляет товар.
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.writeError(w, r, repository.ErrProductNotFound)
		return
	}

	if err := h.service.DeleteProduct(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type reviewRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

// AddReview добавляет отзыв текущего пользователя к товару.
func (h *Handler) AddReview(w http.ResponseWriter, r *http.Request) {
	u, err := currentUser(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	id, ok := pathID(r)
	if !ok {
		h.writeError(w, r, repository.ErrProductNotFound)
		return
	}

	var req reviewRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	p, err := h.service.AddReview(r.Context(), u.ID, id, req.Rating, req.Comment)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, toProductResponse(p))
}

func noop() {}

// parseProductRequest читает поля товара из JSON или multipart/form-data.
// Возвращаемая функция освобождает временные файлы формы.
func (h *Handler) parseProductRequest(w http.ResponseWriter, r *http.Request) (productRequest, *service.ImageUpload, func(), error) {
	var req productRequest

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		if err := decodeJSON(r, &req); err != nil {
			return req, nil, noop, err
		}
		return req, nil, noop, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.opts.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return req, nil, noop, &service.ValidationError{Message: "Image is too large"}
		}
		return req, nil, noop, errInvalidBody
	}
	cleanup := func() { _ = r.MultipartForm.RemoveAll() }

	if err := formToRequest(r.MultipartForm, &req); err != nil {
		cleanup()
		return req, nil, noop, err
	}

	files := r.MultipartForm.File["image"]
	if len(files) == 0 {
		return req, nil, cleanup, nil
	}

	f, err := files[0].Open()
	if err != nil {
		cleanup()
		return req, nil, noop, errInvalidBody
	}
	release := func() {
		_ = f.Close()
		cleanup()
	}

	return req, &service.ImageUpload{Filename: files[0].Filename, Body: f}, release, nil
}

func formToRequest(form *multipart.Form, req *productRequest) error {
	value := func(key string) *string {
		vs, ok := form.Value[key]
		if !ok || len(vs) == 0 {
			return nil
		}
		v := vs[0]
		return &v
	}

	req.Name = value("name")
	req.Brand = value("brand")
	req.Description = value("description")
	req.Category = value("category")
	req.Image = value("image")

	if s := value("price"); s != nil {
		price, err := decimal.NewFromString(strings.TrimSpace(*s))
		if err != nil {
			return &service.ValidationError{Message: "Price must be a number"}
		}
		req.Price = &price
	}

	if s := value("stock"); s != nil {
		stock, err := strconv.Atoi(strings.TrimSpace(*s))
		if err != nil {
			return &service.ValidationError{Message: "Stock must be an integer"}
		}
		req.Stock = &stock
	}

	// Заметки передаются либо повторяющимся полем notes, либо одной строкой через запятую.
	if vs, ok := form.Value["notes"]; ok {
		notes := make([]string, 0, len(vs))
		for _, v := range vs {
			for _, n := range strings.Split(v, ",") {
				if n = strings.TrimSpace(n); n != "" {
					notes = append(notes, n)
				}
			}
		}
		req.Notes = &notes
	}

	return nil
}
