package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/mmeshcher/storefront/internal/model"
	"github.com/mmeshcher/storefront/internal/repository"
	"github.com/mmeshcher/storefront/internal/respond"
	"github.com/mmeshcher/storefront/internal/service"
)

// productRef принимает идентификатор товара числом или строкой.
// Нечисловое значение превращается в 0, которому не соответствует ни один товар.
type productRef int64

func (p *productRef) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	id, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil || id < 0 {
		*p = 0
		return nil
	}
	*p = productRef(id)
	return nil
}

type cartItemRequest struct {
	Product productRef `json:"product"`
	Qty     int        `json:"qty"`
}

type orderRequest struct {
	Items         []cartItemRequest `json:"items"`
	Address       string            `json:"address"`
	PaymentMethod string            `json:"paymentMethod"`
}

type orderLineResponse struct {
	Product int64       `json:"product"`
	Name    string      `json:"name"`
	Qty     int         `json:"qty"`
	Price   json.Number `json:"price"`
}

type orderUserResponse struct {
	ID    int64  `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

type orderResponse struct {
	ID            int64               `json:"id"`
	User          orderUserResponse   `json:"user"`
	Items         []orderLineResponse `json:"items"`
	Total         json.Number         `json:"total"`
	Status        string              `json:"status"`
	Address       string              `json:"address"`
	PaymentMethod string              `json:"paymentMethod"`
	CreatedAt     time.Time           `json:"createdAt"`
	UpdatedAt     time.Time           `json:"updatedAt"`
}

func toOrderResponse(o *model.Order) orderResponse {
	resp := orderResponse{
		ID:            o.ID,
		User:          orderUserResponse{ID: o.UserID},
		Items:         make([]orderLineResponse, 0, len(o.Items)),
		Total:         money(o.Total),
		Status:        string(o.Status),
		Address:       o.Address,
		PaymentMethod: o.PaymentMethod,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
	if o.Owner != nil {
		resp.User.Name = o.Owner.Name
		resp.User.Email = o.Owner.Email
	}
	for _, l := range o.Items {
		resp.Items = append(resp.Items, orderLineResponse{
			Product: l.ProductID,
			Name:    l.Name,
			Qty:     l.Quantity,
			Price:   money(l.Price),
		})
	}
	return resp
}

func toOrderList(orders []model.Order) []orderResponse {
	resp := make([]orderResponse, 0, len(orders))
	for i := range orders {
		resp = append(resp, toOrderResponse(&orders[i]))
	}
	return resp
}

// CreateOrder оформляет заказ текущего пользователя. Цены позиций определяются по каталогу.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	u, err := currentUser(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req orderRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	in := service.OrderInput{
		Items:         make([]model.CartItem, 0, len(req.Items)),
		Address:       req.Address,
		PaymentMethod: req.PaymentMethod,
	}
	for _, it := range req.Items {
		in.Items = append(in.Items, model.CartItem{ProductID: int64(it.Product), Quantity: it.Qty})
	}

	order, err := h.service.PlaceOrder(r.Context(), u.ID, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, toOrderResponse(order))
}

// MyOrders возвращает заказы текущего пользователя, новые первыми.
func (h *Handler) MyOrders(w http.ResponseWriter, r *http.Request) {
	u, err := currentUser(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	orders, err := h.service.GetOrdersByUser(r.Context(), u.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, toOrderList(orders))
}

// ListOrders возвращает все заказы с данными владельцев.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.GetAllOrders(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, toOrderList(orders))
}

type statusRequest struct {
	Status string `json:"status"`
}

// SetOrderStatus меняет статус заказа.
func (h *Handler) SetOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.writeError(w, r, repository.ErrOrderNotFound)
		return
	}

	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	order, err := h.service.SetOrderStatus(r.Context(), id, req.Status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, toOrderResponse(order))
}
