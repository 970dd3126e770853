package interfaces

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"backoffice/internal/pkg/logger"
	"backoffice/internal/service/order/application"
	"backoffice/internal/service/order/domain"
	"backoffice/internal/service/order/domain/port"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "backoffice-service"

// OrderHandler 封装了后台服务的 HTTP 处理器
type OrderHandler struct {
	orders    *application.OrderApplicationService
	inventory *application.InventoryApplicationService
	feed      http.Handler
	tracer    trace.Tracer
}

// NewOrderHandler 创建一个新的 HTTP 处理器实例；feed 为 nil 时不注册 /ws/orders。
func NewOrderHandler(orders *application.OrderApplicationService, inventory *application.InventoryApplicationService, feed http.Handler) *OrderHandler {
	return &OrderHandler{
		orders:    orders,
		inventory: inventory,
		feed:      feed,
		tracer:    otel.Tracer(serviceName),
	}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *OrderHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("POST /api/orders", h.wrap("api.PlaceOrder", h.placeOrder))
	mux.Handle("GET /api/orders", h.wrap("api.ListOrders", h.listOrders))
	mux.Handle("GET /api/orders/{id}", h.wrap("api.GetOrder", h.getOrder))
	mux.Handle("POST /api/orders/{id}/cancel", h.wrap("api.CancelOrder", h.cancelOrder))
	mux.Handle("PUT /api/inventory", h.wrap("api.AdjustStock", h.adjustStock))
	mux.Handle("POST /api/inventory", h.wrap("api.Intake", h.intake))
	mux.Handle("GET /api/inventory", h.wrap("api.ListProducts", h.listProducts))
	mux.Handle("POST /api/customers", h.wrap("api.RegisterCustomer", h.registerCustomer))
	if h.feed != nil {
		mux.Handle("GET /ws/orders", h.feed)
	}
}

// wrap 提取上游的 trace 上下文、分配请求 ID 并开启 span
func (h *OrderHandler) wrap(spanName string, fn func(w http.ResponseWriter, r *http.Request)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		propagator := otel.GetTextMapPropagator()
		ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx = logger.WithRequestID(ctx, requestID)
		w.Header().Set("X-Request-ID", requestID)

		ctx, span := h.tracer.Start(ctx, spanName)
		defer span.End()
		span.SetAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", r.URL.Path),
			attribute.String("request.id", requestID),
		)

		start := time.Now()
		fn(w, r.WithContext(ctx))
		logger.Ctx(ctx).Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("elapsed", time.Since(start)).
			Msg("request handled")
	})
}

type itemPayload struct {
	ProductID int64            `json:"productId"`
	Quantity  int              `json:"quantity"`
	Price     *decimal.Decimal `json:"price,omitempty"`
	Tax       *decimal.Decimal `json:"tax,omitempty"`
	Discount  *decimal.Decimal `json:"discount,omitempty"`
}

type placeOrderPayload struct {
	CustomerID    int64         `json:"customerId"`
	CustomerEmail string        `json:"customerEmail"`
	CustomerName  string        `json:"customerName"`
	Items         []itemPayload `json:"items"`
}

type intakePayload struct {
	Product  string          `json:"product"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

type adjustPayload struct {
	InventoryUpdates []struct {
		ProductID int64 `json:"productId"`
		Quantity  int   `json:"quantity"`
	} `json:"inventoryUpdates"`
}

type customerPayload struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (h *OrderHandler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var payload placeOrderPayload
	if !decode(w, r, &payload) {
		return
	}

	req := &application.PlaceOrderRequest{
		CustomerID:     payload.CustomerID,
		CustomerEmail:  payload.CustomerEmail,
		CustomerName:   payload.CustomerName,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
		Items:          make([]domain.ItemRequest, 0, len(payload.Items)),
	}
	for _, item := range payload.Items {
		req.Items = append(req.Items, domain.ItemRequest{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
			Tax:       item.Tax,
			Discount:  item.Discount,
		})
	}

	result, err := h.orders.PlaceOrder(r.Context(), req)
	if err != nil {
		writeError(r.Context(), w, err, http.StatusInternalServerError)
		return
	}
	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
		w.Header().Set("Idempotent-Replayed", "true")
	}
	writeJSON(w, status, toOrderResponse(result.Order, nil))
}

func (h *OrderHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	views, err := h.orders.ListOrders(r.Context())
	if err != nil {
		writeError(r.Context(), w, err, http.StatusInternalServerError)
		return
	}
	resp := make([]orderResponse, 0, len(views))
	for _, v := range views {
		resp = append(resp, toOrderResponse(v.Order, v.Customer))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *OrderHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	order, err := h.orders.GetOrder(r.Context(), id)
	if err != nil {
		writeError(r.Context(), w, err, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order, nil))
}

func (h *OrderHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	order, err := h.orders.CancelOrder(r.Context(), id)
	if err != nil {
		writeError(r.Context(), w, err, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order, nil))
}

func (h *OrderHandler) intake(w http.ResponseWriter, r *http.Request) {
	var payload intakePayload
	if !decode(w, r, &payload) {
		return
	}
	product, err := h.inventory.Intake(r.Context(), payload.Product, payload.Quantity, payload.Price)
	if err != nil {
		writeError(r.Context(), w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, toProductResponse(product))
}

func (h *OrderHandler) adjustStock(w http.ResponseWriter, r *http.Request) {
	var payload adjustPayload
	if !decode(w, r, &payload) {
		return
	}
	adjustments := make([]application.StockAdjustment, 0, len(payload.InventoryUpdates))
	for _, u := range payload.InventoryUpdates {
		adjustments = append(adjustments, application.StockAdjustment{ProductID: u.ProductID, Quantity: u.Quantity})
	}
	products, err := h.inventory.AdjustStock(r.Context(), adjustments)
	if err != nil {
		writeError(r.Context(), w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponses(products))
}

func (h *OrderHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.inventory.ListProducts(r.Context())
	if err != nil {
		writeError(r.Context(), w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponses(products))
}

func (h *OrderHandler) registerCustomer(w http.ResponseWriter, r *http.Request) {
	var payload customerPayload
	if !decode(w, r, &payload) {
		return
	}
	customer, err := h.orders.RegisterCustomer(r.Context(), payload.Name, payload.Email)
	if err != nil {
		writeError(r.Context(), w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, toCustomerResponse(customer))
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body: " + err.Error(), Kind: "invalid_request"})
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid order id", Kind: "invalid_request"})
		return 0, false
	}
	return id, true
}

type errorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	ProductID int64  `json:"productId,omitempty"`
}

// writeError 是错误分类到 HTTP 状态码的唯一映射点。
// lookupStatus 是该路由下"库存不足/找不到"类错误使用的状态码：
// 下单与调库存时是 500，按 ID 读取或取消订单时是 404。
func writeError(ctx context.Context, w http.ResponseWriter, err error, lookupStatus int) {
	status, kind := http.StatusInternalServerError, "internal"
	switch {
	case errors.Is(err, port.ErrRequestInFlight):
		status, kind = http.StatusConflict, "conflict"
	case errors.Is(err, domain.ErrInvalidRequest):
		status, kind = http.StatusBadRequest, "invalid_request"
	case errors.Is(err, domain.ErrInsufficientStock):
		status, kind = http.StatusInternalServerError, "insufficient_stock"
	case errors.Is(err, domain.ErrNotFound):
		status, kind = lookupStatus, "not_found"
	case errors.Is(err, context.DeadlineExceeded):
		status, kind = http.StatusServiceUnavailable, "timeout"
	}

	resp := errorResponse{Error: err.Error(), Kind: kind, ProductID: domain.OffendingProduct(err)}
	if status == http.StatusInternalServerError && kind == "internal" {
		logger.Ctx(ctx).Error().Err(err).Msg("request failed with internal error")
		resp.Error = "internal error"
	} else {
		logger.Ctx(ctx).Info().Err(err).Int("status", status).Str("kind", kind).Msg("request rejected")
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
