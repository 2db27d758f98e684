package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/invenops/ticketing/internal/domain"
)

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id int64) (*domain.Ticket, error)
	ListVisibleTo(ctx context.Context, requester domain.Requester) ([]domain.Ticket, error)
	// PatchStatus updates only the status column, and only when the stored
	// status still equals expected. Returns pgx.ErrNoRows when no row matched,
	// which callers disambiguate with a follow-up GetByID: either the ticket
	// is gone or another actor won the transition.
	PatchStatus(ctx context.Context, id int64, expected, next domain.TicketStatus) error
	Delete(ctx context.Context, id int64) error
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, code, category, subcategory, service_categories, title, description,
       created_by_id, assigned_to_id, customer_id, site_id, manual_customer, manual_site,
       contact_person, mobile_no, proposed_date, priority, status, created_at, updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (code, category, subcategory, service_categories, title, description,
            created_by_id, assigned_to_id, customer_id, site_id, manual_customer, manual_site,
            contact_person, mobile_no, proposed_date, priority, status)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.Code,
		ticket.Category,
		ticket.Subcategory,
		ticket.ServiceCategories,
		ticket.Title,
		ticket.Description,
		ticket.CreatedByID,
		ticket.AssignedToID,
		ticket.CustomerID,
		ticket.SiteID,
		ticket.ManualCustomer,
		ticket.ManualSite,
		ticket.ContactPerson,
		ticket.MobileNo,
		ticket.ProposedDate,
		ticket.Priority,
		ticket.Status,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	var ticket domain.Ticket
	if err := scanTicket(r.pool.QueryRow(ctx, query, id), &ticket); err != nil {
		return nil, err
	}
	return &ticket, nil
}

// ListVisibleTo applies the server-side visibility rule: the elevated role
// sees every ticket, everyone else only what they created or are assigned to.
// Newest first by creation time.
func (r *ticketRepository) ListVisibleTo(ctx context.Context, requester domain.Requester) ([]domain.Ticket, error) {
	base := `SELECT ` + ticketColumns + ` FROM tickets`
	order := ` ORDER BY created_at DESC, id DESC`

	var (
		rows pgx.Rows
		err  error
	)
	if requester.IsAdmin() {
		rows, err = r.pool.Query(ctx, base+order)
	} else {
		rows, err = r.pool.Query(ctx, base+` WHERE created_by_id=$1 OR assigned_to_id=$1`+order, requester.UserID)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) PatchStatus(ctx context.Context, id int64, expected, next domain.TicketStatus) error {
	const query = `UPDATE tickets SET status=$1, updated_at=NOW() WHERE id=$2 AND status=$3`
	cmd, err := r.pool.Exec(ctx, query, next, id, expected)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM tickets WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanTicket(row pgx.Row, ticket *domain.Ticket) error {
	return row.Scan(
		&ticket.ID,
		&ticket.Code,
		&ticket.Category,
		&ticket.Subcategory,
		&ticket.ServiceCategories,
		&ticket.Title,
		&ticket.Description,
		&ticket.CreatedByID,
		&ticket.AssignedToID,
		&ticket.CustomerID,
		&ticket.SiteID,
		&ticket.ManualCustomer,
		&ticket.ManualSite,
		&ticket.ContactPerson,
		&ticket.MobileNo,
		&ticket.ProposedDate,
		&ticket.Priority,
		&ticket.Status,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	)
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := scanTicket(rows, &ticket); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
