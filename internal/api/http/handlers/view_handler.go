package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/invenops/ticketing/internal/api/dto"
	"github.com/invenops/ticketing/internal/auth"
	"github.com/invenops/ticketing/internal/session"
	apperrors "github.com/invenops/ticketing/pkg/util"
)

// ViewHandler exposes the polling-backed viewer session: snapshot reads,
// thread open/close, and manual refresh.
type ViewHandler struct {
	sessions *session.Manager
}

// NewViewHandler constructs handler.
func NewViewHandler(sessions *session.Manager) *ViewHandler {
	return &ViewHandler{sessions: sessions}
}

// Snapshot GET /view.
func (h *ViewHandler) Snapshot(c *fiber.Ctx) error {
	requester, ok := auth.RequesterFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	sess := h.sessions.Get(requester)
	return c.JSON(fiber.Map{"data": snapshotResponse(sess.Snapshot())})
}

// OpenThread POST /view/thread/:id.
func (h *ViewHandler) OpenThread(c *fiber.Ctx) error {
	requester, ok := auth.RequesterFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	ticketID, err := parseTicketID(c)
	if err != nil {
		return err
	}
	sess := h.sessions.Get(requester)
	if err := sess.OpenThread(c.UserContext(), ticketID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": snapshotResponse(sess.Snapshot())})
}

// CloseThread DELETE /view/thread.
func (h *ViewHandler) CloseThread(c *fiber.Ctx) error {
	requester, ok := auth.RequesterFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	h.sessions.Get(requester).CloseThread()
	return c.SendStatus(fiber.StatusNoContent)
}

// Refresh POST /view/refresh. Runs the same operation the scheduler runs,
// immediately, without resetting the schedule's timer.
func (h *ViewHandler) Refresh(c *fiber.Ctx) error {
	requester, ok := auth.RequesterFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	sess := h.sessions.Get(requester)
	if err := sess.Refresh(c.UserContext()); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": snapshotResponse(sess.Snapshot())})
}

func snapshotResponse(snap session.Snapshot) dto.SnapshotResponse {
	resp := dto.SnapshotResponse{
		Tickets: make([]dto.TicketResponse, 0, len(snap.Tickets)),
	}
	for i := range snap.Tickets {
		resp.Tickets = append(resp.Tickets, ticketResponse(&snap.Tickets[i]))
	}
	if snap.Thread != nil {
		thread := threadResponse(snap.Thread)
		resp.Thread = &thread
	}
	if !snap.RefreshedAt.IsZero() {
		refreshedAt := snap.RefreshedAt
		resp.RefreshedAt = &refreshedAt
	}
	return resp
}
