package domain

// CustomerRef is the read-only directory projection of a customer record.
type CustomerRef struct {
	ID   int64
	Name string
}

// SiteRef is the read-only directory projection of a customer site.
type SiteRef struct {
	ID         int64
	CustomerID int64
	Name       string
}

// DisplayCustomer resolves the customer name shown for the ticket. Manual
// text takes precedence for PRE_SALES and OTHERS tickets even when a stale
// structured reference is present.
func (t *Ticket) DisplayCustomer(resolved string) string {
	if t.Category.UsesManualLocation() {
		return t.ManualCustomer
	}
	return resolved
}

// DisplaySite resolves the site text shown for the ticket.
func (t *Ticket) DisplaySite(resolved string) string {
	if t.Category.UsesManualLocation() {
		return t.ManualSite
	}
	return resolved
}
