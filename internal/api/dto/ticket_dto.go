package dto

import (
	"time"

	"github.com/invenops/ticketing/internal/domain"
)

// CreateTicketRequest describes the ticket creation payload.
type CreateTicketRequest struct {
	Category          domain.TicketCategory `json:"category"`
	Subcategory       string                `json:"subcategory"`
	ServiceCategories []string              `json:"service_categories"`
	Title             string                `json:"title"`
	Description       string                `json:"description"`
	AssignedToID      *int64                `json:"assigned_to_id"`
	CustomerID        *int64                `json:"customer_id"`
	SiteID            *int64                `json:"site_id"`
	ManualCustomer    string                `json:"manual_customer"`
	ManualSite        string                `json:"manual_site"`
	ContactPerson     string                `json:"contact_person"`
	MobileNo          string                `json:"mobile_no"`
	ProposedDate      *time.Time            `json:"proposed_date"`
	Priority          domain.TicketPriority `json:"priority"`
}

// CreateMessageRequest posts a thread message.
type CreateMessageRequest struct {
	Content string `json:"content"`
}

// ChangeStatusRequest requests a lifecycle transition.
type ChangeStatusRequest struct {
	Status domain.TicketStatus `json:"status"`
}

// TicketResponse is the projected per-viewer ticket representation.
type TicketResponse struct {
	ID                 int64                 `json:"id"`
	Code               string                `json:"code"`
	Category           domain.TicketCategory `json:"category"`
	Subcategory        string                `json:"subcategory,omitempty"`
	ServiceCategories  []string              `json:"service_categories,omitempty"`
	Title              string                `json:"title"`
	Description        string                `json:"description"`
	CreatedByID        int64                 `json:"created_by_id"`
	AssignedToID       *int64                `json:"assigned_to_id,omitempty"`
	CustomerName       string                `json:"customer_name,omitempty"`
	SiteName           string                `json:"site_name,omitempty"`
	ContactPerson      string                `json:"contact_person,omitempty"`
	MobileNo           string                `json:"mobile_no,omitempty"`
	ProposedDate       *time.Time            `json:"proposed_date,omitempty"`
	Priority           domain.TicketPriority `json:"priority"`
	Status             domain.TicketStatus   `json:"status"`
	AllowedTransitions []domain.TicketStatus `json:"allowed_transitions"`
	CanDelete          bool                  `json:"can_delete"`
	CreatedAt          time.Time             `json:"created_at"`
	UpdatedAt          time.Time             `json:"updated_at"`
}

// MessageResponse is one thread entry.
type MessageResponse struct {
	ID        int64     `json:"id"`
	TicketID  int64     `json:"ticket_id"`
	SenderID  int64     `json:"sender_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ThreadResponse is a ticket plus its ordered message log.
type ThreadResponse struct {
	Ticket   TicketResponse    `json:"ticket"`
	Messages []MessageResponse `json:"messages"`
}

// SnapshotResponse is the session view: list plus optionally open thread.
type SnapshotResponse struct {
	Tickets     []TicketResponse `json:"tickets"`
	Thread      *ThreadResponse  `json:"thread,omitempty"`
	RefreshedAt *time.Time       `json:"refreshed_at,omitempty"`
}
