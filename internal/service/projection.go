package service

import (
	"context"
	"strconv"

	"github.com/invenops/ticketing/internal/domain"
	"github.com/invenops/ticketing/internal/lifecycle"
)

// TicketView is the read-only projection handed to presentation surfaces: the
// ticket, its resolved display names, and the set of transitions the viewing
// requester may perform. Surfaces never compute transition legality
// themselves.
type TicketView struct {
	Ticket             domain.Ticket
	CustomerName       string
	SiteName           string
	AllowedTransitions []domain.TicketStatus
	CanDelete          bool
}

// ThreadView is a ticket view paired with its ordered message log.
type ThreadView struct {
	TicketView
	Messages []domain.Message
}

// project builds the per-viewer projection. Manual customer/site text takes
// precedence for PRE_SALES and OTHERS tickets; structured references are
// resolved through the cache-fronted directory.
func (s *TicketService) project(ctx context.Context, ticket *domain.Ticket, requester domain.Requester) TicketView {
	var customer, site string
	if !ticket.Category.UsesManualLocation() {
		if ticket.CustomerID != nil {
			customer = s.resolveName(ctx, "customer", *ticket.CustomerID)
		}
		if ticket.SiteID != nil {
			site = s.resolveName(ctx, "site", *ticket.SiteID)
		}
	}
	return TicketView{
		Ticket:             *ticket,
		CustomerName:       ticket.DisplayCustomer(customer),
		SiteName:           ticket.DisplaySite(site),
		AllowedTransitions: lifecycle.LegalTransitions(ticket, requester),
		CanDelete:          lifecycle.CanDelete(ticket, requester) == nil,
	}
}

// resolveName looks a display name up in the cache, falling back to the
// directory. Resolution is best effort: a failed lookup yields an empty name,
// never a failed projection.
func (s *TicketService) resolveName(ctx context.Context, kind string, id int64) string {
	key := "name:" + kind + ":" + strconv.FormatInt(id, 10)
	if s.names != nil {
		if name, ok := s.names.GetName(ctx, key); ok {
			return name
		}
	}
	if s.directory == nil {
		return ""
	}

	var name string
	switch kind {
	case "customer":
		ref, err := s.directory.GetCustomer(ctx, id)
		if err != nil {
			return ""
		}
		name = ref.Name
	case "site":
		ref, err := s.directory.GetSite(ctx, id)
		if err != nil {
			return ""
		}
		name = ref.Name
	}
	if name != "" && s.names != nil {
		s.names.SetName(ctx, key, name, s.nameTTL)
	}
	return name
}
