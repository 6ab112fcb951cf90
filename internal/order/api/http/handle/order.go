package handle

import (
	"context"
	"errors"
	"net/http"
	"time"

	"orderhub/internal/order/app/core"
	"orderhub/internal/order/app/services"
	"orderhub/internal/order/domain/dto"
	"orderhub/internal/order/domain/kot"
	"orderhub/internal/order/domain/lifecycle"
	"orderhub/internal/order/domain/models"
	"orderhub/internal/xpkg/auth"
	"orderhub/internal/xpkg/logger"

	"github.com/gin-gonic/gin"
)

type OrderHandler struct {
	orderService *services.OrderService
	mylog        logger.Logger
}

func NewOrderHandler(orderService *services.OrderService, mylog logger.Logger) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
		mylog:        mylog,
	}
}

func requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), core.WaitTime*time.Second)
}

func withLabel(o models.Order) dto.OrderResponse {
	return dto.OrderResponse{Order: o, StatusLabel: lifecycle.Label(o.Type, o.Status)}
}

func withLabels(orders []models.Order) []dto.OrderResponse {
	out := make([]dto.OrderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, withLabel(o))
	}
	return out
}

// Create places an order. A signed-in customer owns it; anyone else must
// supply guest contact details.
func (oh *OrderHandler) Create(c *gin.Context) {
	var req dto.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		oh.mylog.Action("parse_failed").Debug("Failed to parse order", "reason", err.Error())
		jsonError(c, http.StatusBadRequest, bindError(err))
		return
	}

	actor := auth.ActorFrom(c)
	draft := lifecycle.Draft{
		Items:           dto.LineItems(req.Items),
		OutletID:        string(req.OutletID),
		RestaurantID:    req.RestaurantID,
		Type:            models.OrderType(req.OrderType),
		TableNumber:     req.TableNumber,
		DeliveryAddress: req.DeliveryAddress,
		PaymentType:     models.PaymentType(req.PaymentType),
	}
	if actor.Role == lifecycle.RoleCustomer && actor.ID != "" {
		draft.Customer.UserID = actor.ID
	} else if req.Guest != nil {
		draft.Customer.Guest = &models.GuestContact{
			Name:  req.Guest.Name,
			Email: req.Guest.Email,
			Phone: req.Guest.Phone,
		}
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	order, err := oh.orderService.Create(ctx, draft, actor)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	jsonResponse(c, http.StatusCreated, withLabel(order))
}

func (oh *OrderHandler) Get(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	order, err := oh.orderService.Get(ctx, c.Param("id"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	jsonResponse(c, http.StatusOK, withLabel(order))
}

func (oh *OrderHandler) History(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	logs, err := oh.orderService.History(ctx, c.Param("id"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	jsonResponse(c, http.StatusOK, logs)
}

func (oh *OrderHandler) Transition(c *gin.Context) {
	var req dto.StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		jsonError(c, http.StatusBadRequest, bindError(err))
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	order, err := oh.orderService.Transition(ctx, c.Param("id"), models.Status(req.Status), auth.ActorFrom(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	jsonResponse(c, http.StatusOK, withLabel(order))
}

func (oh *OrderHandler) AddItems(c *gin.Context) {
	var req dto.AddItemsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		jsonError(c, http.StatusBadRequest, bindError(err))
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	order, err := oh.orderService.AddItems(ctx, c.Param("id"), dto.LineItems(req.Items), auth.ActorFrom(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	jsonResponse(c, http.StatusOK, withLabel(order))
}

// GenerateTicket answers 200 with a notice when every item is already printed.
func (oh *OrderHandler) GenerateTicket(c *gin.Context) {
	var req dto.TicketRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			jsonError(c, http.StatusBadRequest, bindError(err))
			return
		}
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	order, ticket, err := oh.orderService.GenerateTicket(ctx, c.Param("id"), req.ItemIDs, auth.ActorFrom(c))
	if errors.Is(err, kot.ErrNothingToPrint) {
		jsonResponse(c, http.StatusOK, dto.NoticeResponse{Notice: "all items already sent to kitchen"})
		return
	}
	if err != nil {
		writeServiceError(c, err)
		return
	}

	oh.mylog.Action("kot_generated").Info("Kitchen ticket generated", "order_id", order.ID, "items", len(ticket.Items))
	jsonResponse(c, http.StatusOK, dto.TicketResponse{
		Order:    order,
		Ticket:   ticket,
		Document: kot.Render(ticket),
	})
}

// ConfirmPayment is the payment provider's synchronous callback.
func (oh *OrderHandler) ConfirmPayment(c *gin.Context) {
	var req dto.PaymentConfirmation
	if err := c.ShouldBindJSON(&req); err != nil {
		jsonError(c, http.StatusBadRequest, bindError(err))
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	order, err := oh.orderService.MarkPaid(ctx, req.OrderID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	jsonResponse(c, http.StatusOK, withLabel(order))
}

func (oh *OrderHandler) ListByOutlet(c *gin.Context) {
	outletID := c.Param("id")
	if !auth.ActorFrom(c).ServesOutlet(outletID) {
		jsonError(c, http.StatusForbidden, lifecycle.ErrActorNotAllowed)
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	orders, err := oh.orderService.ListByOutlet(ctx, outletID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	jsonResponse(c, http.StatusOK, withLabels(orders))
}

func (oh *OrderHandler) ListMine(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	orders, err := oh.orderService.ListByUser(ctx, auth.ActorFrom(c).ID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	jsonResponse(c, http.StatusOK, withLabels(orders))
}
