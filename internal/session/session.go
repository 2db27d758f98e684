// Package session holds the per-viewer state the presentation layer renders:
// the ticket list snapshot and, when a thread is open, that thread. All state
// here is a copy of what the controller last read from the stores; nothing is
// patched locally.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/invenops/ticketing/internal/domain"
	"github.com/invenops/ticketing/internal/service"
	apperrors "github.com/invenops/ticketing/pkg/util"
)

// Controller is the slice of the ticket service a session reads through.
type Controller interface {
	ListTickets(ctx context.Context, requester domain.Requester) ([]service.TicketView, error)
	OpenThread(ctx context.Context, ticketID int64, requester domain.Requester) (*service.ThreadView, error)
}

// Snapshot is the immutable view a session publishes to its renderer.
type Snapshot struct {
	Tickets     []service.TicketView
	Thread      *service.ThreadView
	RefreshedAt time.Time
}

// Session tracks one viewer's list snapshot and optionally open thread.
type Session struct {
	requester domain.Requester
	ctrl      Controller

	mu           sync.RWMutex
	tickets      []service.TicketView
	thread       *service.ThreadView
	openTicketID int64
	refreshedAt  time.Time
	touchedAt    time.Time
}

// New creates a session for the requester.
func New(requester domain.Requester, ctrl Controller) *Session {
	return &Session{
		requester: requester,
		ctrl:      ctrl,
		touchedAt: time.Now(),
	}
}

// Requester returns the viewer identity the session was opened for.
func (s *Session) Requester() domain.Requester {
	return s.requester
}

// OpenThread loads the ticket's thread and marks it as the open one. On
// NOT_FOUND any previously open thread for that ticket is closed before the
// error is returned.
func (s *Session) OpenThread(ctx context.Context, ticketID int64) error {
	s.Touch()
	thread, err := s.ctrl.OpenThread(ctx, ticketID, s.requester)
	if err != nil {
		if isNotFound(err) {
			s.closeThreadIf(ticketID)
		}
		return err
	}
	s.mu.Lock()
	s.thread = thread
	s.openTicketID = ticketID
	s.mu.Unlock()
	return nil
}

// CloseThread drops the open thread view, stopping thread-specific polling.
func (s *Session) CloseThread() {
	s.mu.Lock()
	s.thread = nil
	s.openTicketID = 0
	s.mu.Unlock()
}

// ForceCloseThread closes the thread only if it shows the given ticket. Used
// when another actor deletes the ticket.
func (s *Session) ForceCloseThread(ticketID int64) {
	s.closeThreadIf(ticketID)
}

// Refresh re-fetches the ticket list and, if a thread is open, that thread.
// A thread that vanished closes the thread view; the refreshed list still
// lands. Fetches run outside the lock so the viewer can keep acting while a
// poll is in flight.
func (s *Session) Refresh(ctx context.Context) error {
	tickets, err := s.ctrl.ListTickets(ctx, s.requester)
	if err != nil {
		return err
	}

	s.mu.RLock()
	openID := s.openTicketID
	s.mu.RUnlock()

	var thread *service.ThreadView
	if openID != 0 {
		thread, err = s.ctrl.OpenThread(ctx, openID, s.requester)
		if err != nil {
			if isNotFound(err) {
				s.closeThreadIf(openID)
				s.storeList(tickets)
				return err
			}
			return err
		}
	}

	s.mu.Lock()
	s.tickets = tickets
	s.refreshedAt = time.Now()
	if thread != nil && s.openTicketID == openID {
		s.thread = thread
	}
	s.mu.Unlock()
	return nil
}

// Snapshot returns the last published state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Tickets:     s.tickets,
		Thread:      s.thread,
		RefreshedAt: s.refreshedAt,
	}
}

// Touch records viewer activity for idle eviction.
func (s *Session) Touch() {
	s.mu.Lock()
	s.touchedAt = time.Now()
	s.mu.Unlock()
}

// IdleSince returns the time of the last viewer action.
func (s *Session) IdleSince() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.touchedAt
}

func (s *Session) closeThreadIf(ticketID int64) {
	s.mu.Lock()
	if s.openTicketID == ticketID {
		s.thread = nil
		s.openTicketID = 0
	}
	s.mu.Unlock()
}

func (s *Session) storeList(tickets []service.TicketView) {
	s.mu.Lock()
	s.tickets = tickets
	s.refreshedAt = time.Now()
	s.mu.Unlock()
}

func isNotFound(err error) bool {
	var domainErr *apperrors.DomainError
	return errors.As(err, &domainErr) && domainErr.Code == "NOT_FOUND"
}
