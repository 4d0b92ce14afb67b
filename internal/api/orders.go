package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"garmentsapi/internal/middleware"
	"garmentsapi/internal/models"
	"garmentsapi/internal/service"
	"garmentsapi/internal/util"
)

type placeOrderRequest struct {
	ProductID       string `json:"productId"`
	Quantity        int    `json:"quantity"`
	Email           string `json:"email"`
	DeliveryAddress string `json:"deliveryAddress"`
	ContactNumber   string `json:"contactNumber"`
	Notes           string `json:"notes"`
}

func (h *Handlers) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := util.DecodeJSON(r, &req); err != nil {
		badJSON(w, r)
		return
	}
	c := caller(r)
	email := strings.TrimSpace(req.Email)
	if email == "" {
		email = c.Email
	} else if !c.IsAdmin() && !strings.EqualFold(email, c.Email) {
		util.WriteError(w, http.StatusForbidden, "forbidden", "cannot order for another account", middleware.RequestID(r.Context()))
		return
	}
	res, err := h.svc.PlaceOrder(r.Context(), service.PlaceOrderRequest{
		ProductID:       req.ProductID,
		Quantity:        req.Quantity,
		Email:           email,
		DeliveryAddress: req.DeliveryAddress,
		ContactNumber:   req.ContactNumber,
		Notes:           req.Notes,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	util.WriteJSON(w, http.StatusCreated, map[string]any{
		"orderId":                res.OrderID,
		"updatedProductQuantity": res.UpdatedProductQuantity,
	})
}

// trackingBody is either {"event": ..., "location": ...} or a bare event
// string.
type trackingBody struct {
	Event    string `json:"event"`
	Location string `json:"location"`
}

func (t *trackingBody) UnmarshalJSON(b []byte) error {
	var event string
	if err := json.Unmarshal(b, &event); err == nil {
		t.Event = event
		return nil
	}
	type plain trackingBody
	return json.Unmarshal(b, (*plain)(t))
}

type updateOrderRequest struct {
	Status   *string       `json:"status"`
	Tracking *trackingBody `json:"tracking"`
	// TrackingEvent is an alias of Tracking.
	TrackingEvent *trackingBody `json:"trackingEvent"`
}

func (h *Handlers) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	var req updateOrderRequest
	if err := util.DecodeJSON(r, &req); err != nil {
		badJSON(w, r)
		return
	}
	tb := req.Tracking
	if tb == nil {
		tb = req.TrackingEvent
	}
	var tracking *service.TrackingInput
	if tb != nil {
		tracking = &service.TrackingInput{Event: tb.Event, Location: tb.Location}
	}
	res, err := h.svc.UpdateOrderStatus(r.Context(), chi.URLParam(r, "id"), req.Status, tracking)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, res)
}

func (h *Handlers) ListOrders(w http.ResponseWriter, r *http.Request) {
	page, limit := parsePagination(r)
	items, total, err := h.svc.ListOrders(r.Context(), caller(r), models.OrderQuery{
		Email:  r.URL.Query().Get("email"),
		Status: r.URL.Query().Get("status"),
		Limit:  limit,
		Offset: (page - 1) * limit,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, pageBody(items, total, page, limit))
}

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.svc.GetOrder(r.Context(), caller(r), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, o)
}
