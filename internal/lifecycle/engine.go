// Package lifecycle is the single source of truth for ticket status
// transitions. It is a pure decision component: no I/O, no clock, no side
// effects. Every surface that needs to know whether a transition is legal asks
// this package; nothing else consults the transition table.
package lifecycle

import (
	"errors"
	"fmt"

	"github.com/invenops/ticketing/internal/domain"
)

// ErrNotAuthorized is returned verbatim to the requester when the transition
// exists but the requester's role does not permit it.
var ErrNotAuthorized = errors.New("not authorized for this transition")

// ErrDeleteRequiresClosed rejects deletion of a ticket that is not CLOSED.
var ErrDeleteRequiresClosed = errors.New("only closed tickets can be deleted")

// IllegalTransitionError rejects a (current, target) pair missing from the
// transition table. It usually indicates a race with another actor; callers
// should re-fetch the ticket rather than retry.
type IllegalTransitionError struct {
	From domain.TicketStatus
	To   domain.TicketStatus
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal transition from %s to %s", e.From, e.To)
}

// transitions maps each status to the statuses it may move to. Self
// transitions are rejected implicitly by their absence. CLOSED→REOPENED is the
// only reopening path; REOPENED has no route back to OPEN and proceeds only to
// IN_PROGRESS.
var transitions = map[domain.TicketStatus][]domain.TicketStatus{
	domain.TicketStatusOpen:       {domain.TicketStatusInProgress},
	domain.TicketStatusInProgress: {domain.TicketStatusResolved},
	domain.TicketStatusResolved:   {domain.TicketStatusClosed},
	domain.TicketStatusReopened:   {domain.TicketStatusInProgress},
	domain.TicketStatusClosed:     {domain.TicketStatusReopened},
}

func tableAllows(current, target domain.TicketStatus) bool {
	for _, next := range transitions[current] {
		if next == target {
			return true
		}
	}
	return false
}

// authorized checks the role gate for a transition already known to be in the
// table. Forward transitions (into IN_PROGRESS, RESOLVED, CLOSED) are admin
// only; reopening a CLOSED ticket is allowed for the admin or the ticket's
// creator.
func authorized(ticket *domain.Ticket, target domain.TicketStatus, requester domain.Requester) bool {
	switch target {
	case domain.TicketStatusInProgress, domain.TicketStatusResolved, domain.TicketStatusClosed:
		return requester.IsAdmin()
	case domain.TicketStatusReopened:
		return requester.IsAdmin() || ticket.CreatedByID == requester.UserID
	}
	return false
}

// RequestTransition decides whether ticket may move to target on behalf of
// requester. On acceptance it returns a copy of the ticket with exactly the
// Status field changed; the input ticket is never mutated. Pairs missing from
// the table (including no-ops) fail with IllegalTransitionError regardless of
// role; pairs in the table fail with ErrNotAuthorized when the role gate does
// not pass.
func RequestTransition(ticket *domain.Ticket, target domain.TicketStatus, requester domain.Requester) (domain.Ticket, error) {
	if !tableAllows(ticket.Status, target) {
		return domain.Ticket{}, &IllegalTransitionError{From: ticket.Status, To: target}
	}
	if !authorized(ticket, target, requester) {
		return domain.Ticket{}, ErrNotAuthorized
	}
	updated := *ticket
	updated.Status = target
	return updated, nil
}

// CanDelete reports whether requester may destructively delete the ticket:
// elevated role only, and only from CLOSED.
func CanDelete(ticket *domain.Ticket, requester domain.Requester) error {
	if !requester.IsAdmin() {
		return ErrNotAuthorized
	}
	if ticket.Status != domain.TicketStatusClosed {
		return ErrDeleteRequiresClosed
	}
	return nil
}

// LegalTransitions derives the set of target statuses requester may move the
// ticket to right now, by running every candidate through the same checks
// RequestTransition applies. Presentation surfaces use this instead of
// consulting the table themselves.
func LegalTransitions(ticket *domain.Ticket, requester domain.Requester) []domain.TicketStatus {
	var legal []domain.TicketStatus
	for _, candidate := range domain.TicketStatuses {
		if !tableAllows(ticket.Status, candidate) {
			continue
		}
		if !authorized(ticket, candidate, requester) {
			continue
		}
		legal = append(legal, candidate)
	}
	return legal
}
