package domain

import (
	"strings"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "OPEN"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusResolved   TicketStatus = "RESOLVED"
	TicketStatusClosed     TicketStatus = "CLOSED"
	TicketStatusReopened   TicketStatus = "REOPENED"
)

// TicketStatuses lists every known status.
var TicketStatuses = []TicketStatus{
	TicketStatusOpen,
	TicketStatusInProgress,
	TicketStatusResolved,
	TicketStatusClosed,
	TicketStatusReopened,
}

// TicketPriority enumerates severity; it is not gated by the lifecycle engine.
type TicketPriority string

const (
	TicketPriorityLow      TicketPriority = "LOW"
	TicketPriorityMedium   TicketPriority = "MEDIUM"
	TicketPriorityHigh     TicketPriority = "HIGH"
	TicketPriorityUrgent   TicketPriority = "URGENT"
	TicketPriorityCritical TicketPriority = "CRITICAL"
)

// TicketCategory classifies the kind of support request.
type TicketCategory string

const (
	CategoryPreSales      TicketCategory = "PRE_SALES"
	CategoryOnSiteVisit   TicketCategory = "ON_SITE_VISIT"
	CategoryRemoteSupport TicketCategory = "REMOTE_SUPPORT"
	CategoryOthers        TicketCategory = "OTHERS"
)

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID                int64
	Code              string
	Category          TicketCategory
	Subcategory       string
	ServiceCategories []string
	Title             string
	Description       string
	CreatedByID       int64
	AssignedToID      *int64
	CustomerID        *int64
	SiteID            *int64
	ManualCustomer    string
	ManualSite        string
	ContactPerson     string
	MobileNo          string
	ProposedDate      *time.Time
	Priority          TicketPriority
	Status            TicketStatus
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// UsesManualLocation reports whether the category carries free-text
// customer/site fields instead of a structured directory reference.
func (c TicketCategory) UsesManualLocation() bool {
	return c == CategoryPreSales || c == CategoryOthers
}

func validCategory(c TicketCategory) bool {
	switch c {
	case CategoryPreSales, CategoryOnSiteVisit, CategoryRemoteSupport, CategoryOthers:
		return true
	}
	return false
}

func validPriority(p TicketPriority) bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityUrgent, TicketPriorityCritical:
		return true
	}
	return false
}

// ValidStatus reports whether s is a known lifecycle status.
func ValidStatus(s TicketStatus) bool {
	for _, known := range TicketStatuses {
		if known == s {
			return true
		}
	}
	return false
}

// ValidateNew checks the invariants a ticket must satisfy before creation.
// The zero-value Priority is defaulted to MEDIUM.
func (t *Ticket) ValidateNew() error {
	t.Title = strings.TrimSpace(t.Title)
	t.Description = strings.TrimSpace(t.Description)
	t.ManualCustomer = strings.TrimSpace(t.ManualCustomer)
	t.ManualSite = strings.TrimSpace(t.ManualSite)

	if t.Title == "" {
		return NewValidationError("title is required")
	}
	if t.Description == "" {
		return NewValidationError("description is required")
	}
	if !validCategory(t.Category) {
		return NewValidationError("unknown category")
	}
	if t.Priority == "" {
		t.Priority = TicketPriorityMedium
	}
	if !validPriority(t.Priority) {
		return NewValidationError("unknown priority")
	}

	if t.Category.UsesManualLocation() {
		if t.CustomerID != nil || t.SiteID != nil {
			return NewValidationError("manual-location categories must not reference a customer or site")
		}
		if t.ManualCustomer == "" {
			return NewValidationError("customer name is required")
		}
	} else {
		if t.ManualCustomer != "" || t.ManualSite != "" {
			return NewValidationError("structured categories must not carry manual customer or site text")
		}
		if t.CustomerID == nil || t.SiteID == nil {
			return NewValidationError("customer and site are required")
		}
	}
	return nil
}

// ValidationError marks input rejected before any store call.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// NewValidationError builds a ValidationError.
func NewValidationError(reason string) *ValidationError {
	return &ValidationError{Reason: reason}
}
