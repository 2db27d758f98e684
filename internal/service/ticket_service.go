package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/invenops/ticketing/internal/domain"
	"github.com/invenops/ticketing/internal/events"
	"github.com/invenops/ticketing/internal/lifecycle"
	"github.com/invenops/ticketing/internal/repository"
	apperrors "github.com/invenops/ticketing/pkg/util"
)

// TicketService is the session controller: every read and write of ticket or
// thread state funnels through it. Mutations follow a strict write-then-reload
// discipline — the value returned to the caller is always re-read from the
// store, never a locally patched copy.
type TicketService struct {
	tickets    repository.TicketRepository
	messages   repository.MessageRepository
	directory  repository.DirectoryRepository
	names      NameCache
	nameTTL    time.Duration
	dispatcher events.Dispatcher
}

// NameCache is the optional display-name cache in front of the directory.
type NameCache interface {
	GetName(ctx context.Context, key string) (string, bool)
	SetName(ctx context.Context, key, name string, ttl time.Duration)
}

// Dependencies bundles collaborators for the ticket service.
type Dependencies struct {
	TicketRepo    repository.TicketRepository
	MessageRepo   repository.MessageRepository
	DirectoryRepo repository.DirectoryRepository
	NameCache     NameCache
	NameCacheTTL  time.Duration
	Dispatcher    events.Dispatcher
}

// CreateInput describes ticket creation payload.
type CreateInput struct {
	Category          domain.TicketCategory
	Subcategory       string
	ServiceCategories []string
	Title             string
	Description       string
	AssignedToID      *int64
	CustomerID        *int64
	SiteID            *int64
	ManualCustomer    string
	ManualSite        string
	ContactPerson     string
	MobileNo          string
	ProposedDate      *time.Time
	Priority          domain.TicketPriority
}

// NewTicketService constructs the service.
func NewTicketService(deps Dependencies) *TicketService {
	return &TicketService{
		tickets:    deps.TicketRepo,
		messages:   deps.MessageRepo,
		directory:  deps.DirectoryRepo,
		names:      deps.NameCache,
		nameTTL:    deps.NameCacheTTL,
		dispatcher: deps.Dispatcher,
	}
}

// CreateTicket validates and persists a new ticket with status OPEN.
func (s *TicketService) CreateTicket(ctx context.Context, requester domain.Requester, input CreateInput) (*TicketView, error) {
	ticket := &domain.Ticket{
		Code:              generateTicketCode(),
		Category:          input.Category,
		Subcategory:       input.Subcategory,
		ServiceCategories: input.ServiceCategories,
		Title:             input.Title,
		Description:       input.Description,
		CreatedByID:       requester.UserID,
		AssignedToID:      input.AssignedToID,
		CustomerID:        input.CustomerID,
		SiteID:            input.SiteID,
		ManualCustomer:    input.ManualCustomer,
		ManualSite:        input.ManualSite,
		ContactPerson:     input.ContactPerson,
		MobileNo:          input.MobileNo,
		ProposedDate:      input.ProposedDate,
		Priority:          input.Priority,
		Status:            domain.TicketStatusOpen,
	}
	if err := ticket.ValidateNew(); err != nil {
		return nil, err
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, storeError(err)
	}
	s.publish(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    requester,
		Payload: events.TicketCreatedPayload{
			Code:     ticket.Code,
			Category: ticket.Category,
			Priority: ticket.Priority,
			Title:    ticket.Title,
		},
	})
	view := s.project(ctx, ticket, requester)
	return &view, nil
}

// ListTickets returns the tickets visible to the requester, newest first,
// projected with the transitions the requester may perform on each.
func (s *TicketService) ListTickets(ctx context.Context, requester domain.Requester) ([]TicketView, error) {
	tickets, err := s.tickets.ListVisibleTo(ctx, requester)
	if err != nil {
		return nil, storeError(err)
	}
	views := make([]TicketView, 0, len(tickets))
	for i := range tickets {
		views = append(views, s.project(ctx, &tickets[i], requester))
	}
	return views, nil
}

// OpenThread loads a ticket and its full ordered message list. It fails with
// NOT_FOUND when the ticket no longer exists (or is not visible to the
// requester); callers holding the thread open must close it on that failure.
func (s *TicketService) OpenThread(ctx context.Context, ticketID int64, requester domain.Requester) (*ThreadView, error) {
	ticket, err := s.loadVisible(ctx, ticketID, requester)
	if err != nil {
		return nil, err
	}
	msgs, err := s.messages.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, storeError(err)
	}
	return &ThreadView{
		TicketView: s.project(ctx, ticket, requester),
		Messages:   msgs,
	}, nil
}

// PostMessage appends to the thread and reloads it. The returned thread is
// re-read from the store so the caller sees exactly what was persisted.
func (s *TicketService) PostMessage(ctx context.Context, ticketID int64, requester domain.Requester, content string) (*ThreadView, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, domain.NewValidationError("message content is required")
	}
	ticket, err := s.loadVisible(ctx, ticketID, requester)
	if err != nil {
		return nil, err
	}
	msg := &domain.Message{
		TicketID: ticket.ID,
		SenderID: requester.UserID,
		Content:  content,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, storeError(err)
	}
	s.publish(ctx, events.Event{
		Type:     events.EventTicketMessageAdded,
		TicketID: ticket.ID,
		Actor:    requester,
		Payload: events.TicketMessageAddedPayload{
			MessageID:   msg.ID,
			SenderID:    msg.SenderID,
			BodyPreview: preview(msg.Content, 120),
		},
	})
	return s.OpenThread(ctx, ticketID, requester)
}

// ChangeStatus runs the lifecycle engine and, on acceptance, patches exactly
// the status column. The patch is conditional on the status the engine
// validated against; losing a race with another actor surfaces as an illegal
// transition from the ticket's actual current status.
func (s *TicketService) ChangeStatus(ctx context.Context, ticketID int64, target domain.TicketStatus, requester domain.Requester) (*TicketView, error) {
	if !domain.ValidStatus(target) {
		return nil, domain.NewValidationError("unknown status")
	}
	ticket, err := s.loadVisible(ctx, ticketID, requester)
	if err != nil {
		return nil, err
	}
	updated, err := lifecycle.RequestTransition(ticket, target, requester)
	if err != nil {
		return nil, err
	}
	if err := s.tickets.PatchStatus(ctx, ticket.ID, ticket.Status, updated.Status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, s.explainLostPatch(ctx, ticketID, target)
		}
		return nil, storeError(err)
	}
	s.publish(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: ticket.ID,
		Actor:    requester,
		Payload: events.TicketStatusChangedPayload{
			OldStatus: ticket.Status,
			NewStatus: updated.Status,
		},
	})
	// Authoritative re-read rather than trusting the local copy.
	fresh, err := s.loadVisible(ctx, ticketID, requester)
	if err != nil {
		return nil, err
	}
	view := s.project(ctx, fresh, requester)
	return &view, nil
}

// ReopenAsCreator is the one-click creator action for CLOSED tickets. It is
// deliberately restricted to the creator path; admins use ChangeStatus.
func (s *TicketService) ReopenAsCreator(ctx context.Context, ticketID int64, requester domain.Requester) (*TicketView, error) {
	ticket, err := s.loadVisible(ctx, ticketID, requester)
	if err != nil {
		return nil, err
	}
	if ticket.CreatedByID != requester.UserID {
		return nil, lifecycle.ErrNotAuthorized
	}
	return s.ChangeStatus(ctx, ticketID, domain.TicketStatusReopened, requester)
}

// DeleteTicket destructively removes a CLOSED ticket. Admin only. Subscribers
// of the deletion event force-close any open thread view for the ticket.
func (s *TicketService) DeleteTicket(ctx context.Context, ticketID int64, requester domain.Requester) error {
	ticket, err := s.loadVisible(ctx, ticketID, requester)
	if err != nil {
		return err
	}
	if err := lifecycle.CanDelete(ticket, requester); err != nil {
		return err
	}
	if err := s.tickets.Delete(ctx, ticket.ID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return storeError(err)
	}
	s.publish(ctx, events.Event{
		Type:     events.EventTicketDeleted,
		TicketID: ticket.ID,
		Actor:    requester,
		Payload:  events.TicketDeletedPayload{Code: ticket.Code},
	})
	return nil
}

// loadVisible fetches the ticket and applies the visibility rule. A ticket the
// requester may not see is reported as not found rather than forbidden.
func (s *TicketService) loadVisible(ctx context.Context, ticketID int64, requester domain.Requester) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, storeError(err)
	}
	if !canView(requester, ticket) {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	return ticket, nil
}

// explainLostPatch turns a failed conditional status patch into the right
// rejection: the ticket vanished, or another actor moved it first.
func (s *TicketService) explainLostPatch(ctx context.Context, ticketID int64, target domain.TicketStatus) error {
	current, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return storeError(err)
	}
	return &lifecycle.IllegalTransitionError{From: current.Status, To: target}
}

func canView(requester domain.Requester, ticket *domain.Ticket) bool {
	if requester.IsAdmin() {
		return true
	}
	if ticket.CreatedByID == requester.UserID {
		return true
	}
	return ticket.AssignedToID != nil && *ticket.AssignedToID == requester.UserID
}

func (s *TicketService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func generateTicketCode() string {
	return "TCK-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// preview truncates to at most max bytes without splitting a UTF-8 rune.
func preview(body string, max int) string {
	body = strings.TrimSpace(body)
	if len(body) <= max {
		return body
	}
	cut := max
	suffix := ""
	if max > 3 {
		cut = max - 3
		suffix = "..."
	}
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return body[:cut] + suffix
}

// storeError classifies an unexpected repository failure as a transport
// problem: surfaced with a retry-suggested message, never swallowed.
func storeError(err error) error {
	return apperrors.NewTransportError(err)
}
