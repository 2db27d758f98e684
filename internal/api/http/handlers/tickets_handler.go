package handlers

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/invenops/ticketing/internal/api/dto"
	"github.com/invenops/ticketing/internal/auth"
	"github.com/invenops/ticketing/internal/service"
	apperrors "github.com/invenops/ticketing/pkg/util"
)

// TicketsHandler exposes the ticket lifecycle and thread endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	requester, ok := auth.RequesterFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	view, err := h.service.CreateTicket(c.UserContext(), requester, service.CreateInput{
		Category:          req.Category,
		Subcategory:       req.Subcategory,
		ServiceCategories: req.ServiceCategories,
		Title:             req.Title,
		Description:       req.Description,
		AssignedToID:      req.AssignedToID,
		CustomerID:        req.CustomerID,
		SiteID:            req.SiteID,
		ManualCustomer:    req.ManualCustomer,
		ManualSite:        req.ManualSite,
		ContactPerson:     req.ContactPerson,
		MobileNo:          req.MobileNo,
		ProposedDate:      req.ProposedDate,
		Priority:          req.Priority,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketResponse(view)})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	requester, ok := auth.RequesterFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	views, err := h.service.ListTickets(c.UserContext(), requester)
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(views))
	for i := range views {
		items = append(items, ticketResponse(&views[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetThread GET /tickets/:id/thread.
func (h *TicketsHandler) GetThread(c *fiber.Ctx) error {
	requester, ok := auth.RequesterFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	ticketID, err := parseTicketID(c)
	if err != nil {
		return err
	}
	thread, err := h.service.OpenThread(c.UserContext(), ticketID, requester)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": threadResponse(thread)})
}

// PostMessage POST /tickets/:id/messages.
func (h *TicketsHandler) PostMessage(c *fiber.Ctx) error {
	requester, ok := auth.RequesterFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	ticketID, err := parseTicketID(c)
	if err != nil {
		return err
	}
	var req dto.CreateMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	thread, err := h.service.PostMessage(c.UserContext(), ticketID, requester, req.Content)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": threadResponse(thread)})
}

// ChangeStatus POST /tickets/:id/status.
func (h *TicketsHandler) ChangeStatus(c *fiber.Ctx) error {
	requester, ok := auth.RequesterFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	ticketID, err := parseTicketID(c)
	if err != nil {
		return err
	}
	var req dto.ChangeStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Status == "" {
		return apperrors.NewValidationError("status required", nil)
	}
	view, err := h.service.ChangeStatus(c.UserContext(), ticketID, req.Status, requester)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(view)})
}

// Reopen POST /tickets/:id/reopen — the creator's one-click action.
func (h *TicketsHandler) Reopen(c *fiber.Ctx) error {
	requester, ok := auth.RequesterFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	ticketID, err := parseTicketID(c)
	if err != nil {
		return err
	}
	view, err := h.service.ReopenAsCreator(c.UserContext(), ticketID, requester)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(view)})
}

// DeleteTicket DELETE /tickets/:id.
func (h *TicketsHandler) DeleteTicket(c *fiber.Ctx) error {
	requester, ok := auth.RequesterFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	ticketID, err := parseTicketID(c)
	if err != nil {
		return err
	}
	if err := h.service.DeleteTicket(c.UserContext(), ticketID, requester); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func parseTicketID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("invalid ticket id", nil)
	}
	return id, nil
}

func ticketResponse(view *service.TicketView) dto.TicketResponse {
	t := view.Ticket
	return dto.TicketResponse{
		ID:                 t.ID,
		Code:               t.Code,
		Category:           t.Category,
		Subcategory:        t.Subcategory,
		ServiceCategories:  t.ServiceCategories,
		Title:              t.Title,
		Description:        t.Description,
		CreatedByID:        t.CreatedByID,
		AssignedToID:       t.AssignedToID,
		CustomerName:       view.CustomerName,
		SiteName:           view.SiteName,
		ContactPerson:      t.ContactPerson,
		MobileNo:           t.MobileNo,
		ProposedDate:       t.ProposedDate,
		Priority:           t.Priority,
		Status:             t.Status,
		AllowedTransitions: view.AllowedTransitions,
		CanDelete:          view.CanDelete,
		CreatedAt:          t.CreatedAt,
		UpdatedAt:          t.UpdatedAt,
	}
}

func threadResponse(thread *service.ThreadView) dto.ThreadResponse {
	msgs := make([]dto.MessageResponse, 0, len(thread.Messages))
	for _, msg := range thread.Messages {
		msgs = append(msgs, dto.MessageResponse{
			ID:        msg.ID,
			TicketID:  msg.TicketID,
			SenderID:  msg.SenderID,
			Content:   msg.Content,
			CreatedAt: msg.CreatedAt,
		})
	}
	return dto.ThreadResponse{
		Ticket:   ticketResponse(&thread.TicketView),
		Messages: msgs,
	}
}
