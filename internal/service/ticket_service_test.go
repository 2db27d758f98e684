package service

import (
	"context"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invenops/ticketing/internal/domain"
	"github.com/invenops/ticketing/internal/events"
	"github.com/invenops/ticketing/internal/lifecycle"
	apperrors "github.com/invenops/ticketing/pkg/util"
)

type fakeTicketRepo struct {
	mu      sync.Mutex
	nextID  int64
	tickets map[int64]domain.Ticket

	// beforePatch runs at the top of PatchStatus, outside the lock. Tests use
	// it to interleave a concurrent writer between the validation read and the
	// conditional patch.
	beforePatch func()
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{tickets: make(map[int64]domain.Ticket)}
}

func (r *fakeTicketRepo) Create(ctx context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	ticket.ID = r.nextID
	ticket.CreatedAt = time.Now().Add(time.Duration(r.nextID) * time.Millisecond)
	ticket.UpdatedAt = ticket.CreatedAt
	r.tickets[ticket.ID] = *ticket
	return nil
}

func (r *fakeTicketRepo) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &ticket, nil
}

func (r *fakeTicketRepo) ListVisibleTo(ctx context.Context, requester domain.Requester) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Ticket
	for _, ticket := range r.tickets {
		if requester.IsAdmin() || ticket.CreatedByID == requester.UserID ||
			(ticket.AssignedToID != nil && *ticket.AssignedToID == requester.UserID) {
			result = append(result, ticket)
		}
	}
	// Newest first like the store query.
	for i := 0; i < len(result); i++ {
		for j := i + 1; j < len(result); j++ {
			if result[j].CreatedAt.After(result[i].CreatedAt) {
				result[i], result[j] = result[j], result[i]
			}
		}
	}
	return result, nil
}

func (r *fakeTicketRepo) PatchStatus(ctx context.Context, id int64, expected, next domain.TicketStatus) error {
	if r.beforePatch != nil {
		r.beforePatch()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[id]
	if !ok || ticket.Status != expected {
		return pgx.ErrNoRows
	}
	ticket.Status = next
	ticket.UpdatedAt = time.Now()
	r.tickets[id] = ticket
	return nil
}

func (r *fakeTicketRepo) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tickets[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.tickets, id)
	return nil
}

// set force-overwrites stored state, simulating a concurrent actor.
func (r *fakeTicketRepo) set(ticket domain.Ticket) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tickets[ticket.ID] = ticket
}

type fakeMessageRepo struct {
	mu     sync.Mutex
	nextID int64
	byTkt  map[int64][]domain.Message
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{byTkt: make(map[int64][]domain.Message)}
}

func (r *fakeMessageRepo) Create(ctx context.Context, msg *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	msg.ID = r.nextID
	msg.CreatedAt = time.Now().Add(time.Duration(r.nextID) * time.Millisecond)
	r.byTkt[msg.TicketID] = append(r.byTkt[msg.TicketID], *msg)
	return nil
}

func (r *fakeMessageRepo) ListByTicket(ctx context.Context, ticketID int64) ([]domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Message{}, r.byTkt[ticketID]...), nil
}

type fakeDirectory struct {
	customers map[int64]string
	sites     map[int64]string
	lookups   int
}

func (d *fakeDirectory) GetCustomer(ctx context.Context, id int64) (*domain.CustomerRef, error) {
	d.lookups++
	name, ok := d.customers[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &domain.CustomerRef{ID: id, Name: name}, nil
}

func (d *fakeDirectory) GetSite(ctx context.Context, id int64) (*domain.SiteRef, error) {
	d.lookups++
	name, ok := d.sites[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &domain.SiteRef{ID: id, Name: name}, nil
}

type mapNameCache struct {
	mu    sync.Mutex
	names map[string]string
}

func newMapNameCache() *mapNameCache {
	return &mapNameCache{names: make(map[string]string)}
}

func (c *mapNameCache) GetName(ctx context.Context, key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	name, ok := c.names[key]
	return name, ok
}

func (c *mapNameCache) SetName(ctx context.Context, key, name string, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.names[key] = name
}

type fixture struct {
	svc        *TicketService
	tickets    *fakeTicketRepo
	messages   *fakeMessageRepo
	directory  *fakeDirectory
	dispatcher events.Dispatcher
}

func newFixture() *fixture {
	tickets := newFakeTicketRepo()
	messages := newFakeMessageRepo()
	directory := &fakeDirectory{
		customers: map[int64]string{10: "Acme Industries"},
		sites:     map[int64]string{20: "Acme Plant 3"},
	}
	dispatcher := events.NewInMemoryDispatcher()
	svc := NewTicketService(Dependencies{
		TicketRepo:    tickets,
		MessageRepo:   messages,
		DirectoryRepo: directory,
		NameCache:     newMapNameCache(),
		NameCacheTTL:  time.Minute,
		Dispatcher:    dispatcher,
	})
	return &fixture{svc: svc, tickets: tickets, messages: messages, directory: directory, dispatcher: dispatcher}
}

var (
	adminReq   = domain.Requester{UserID: 1, Role: domain.RoleAdmin}
	creatorReq = domain.Requester{UserID: 7, Role: domain.RoleUser}
	otherReq   = domain.Requester{UserID: 99, Role: domain.RoleUser}
)

func structuredInput() CreateInput {
	customerID, siteID := int64(10), int64(20)
	return CreateInput{
		Category:    domain.CategoryOnSiteVisit,
		Title:       "conveyor misaligned",
		Description: "belt drifts on line 2",
		CustomerID:  &customerID,
		SiteID:      &siteID,
	}
}

func manualInput() CreateInput {
	return CreateInput{
		Category:       domain.CategoryPreSales,
		Title:          "quote request",
		Description:    "asking about spare part pricing",
		ManualCustomer: "Walk-in Prospect",
		ManualSite:     "their warehouse",
	}
}

func TestCreateTicketStartsOpen(t *testing.T) {
	f := newFixture()
	view, err := f.svc.CreateTicket(context.Background(), creatorReq, structuredInput())
	require.NoError(t, err)

	assert.Equal(t, domain.TicketStatusOpen, view.Ticket.Status)
	assert.Equal(t, creatorReq.UserID, view.Ticket.CreatedByID)
	assert.Equal(t, domain.TicketPriorityMedium, view.Ticket.Priority)
	assert.NotEmpty(t, view.Ticket.Code)
	assert.Equal(t, "Acme Industries", view.CustomerName)
	assert.Equal(t, "Acme Plant 3", view.SiteName)
}

func TestCreateTicketValidation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	input := structuredInput()
	input.Title = "   "
	_, err := f.svc.CreateTicket(ctx, creatorReq, input)
	var validation *domain.ValidationError
	require.ErrorAs(t, err, &validation)

	input = structuredInput()
	input.ManualCustomer = "should not be here"
	_, err = f.svc.CreateTicket(ctx, creatorReq, input)
	require.ErrorAs(t, err, &validation)

	input = manualInput()
	customerID := int64(10)
	input.CustomerID = &customerID
	_, err = f.svc.CreateTicket(ctx, creatorReq, input)
	require.ErrorAs(t, err, &validation)
}

func TestManualNamePrecedence(t *testing.T) {
	f := newFixture()
	view, err := f.svc.CreateTicket(context.Background(), creatorReq, manualInput())
	require.NoError(t, err)

	assert.Equal(t, "Walk-in Prospect", view.CustomerName)
	assert.Equal(t, "their warehouse", view.SiteName)
	assert.Zero(t, f.directory.lookups, "manual-location tickets never hit the directory")
}

func TestDirectoryLookupIsCached(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.CreateTicket(ctx, creatorReq, structuredInput())
	require.NoError(t, err)
	after := f.directory.lookups

	_, err = f.svc.ListTickets(ctx, creatorReq)
	require.NoError(t, err)
	assert.Equal(t, after, f.directory.lookups, "second resolution must come from the cache")
}

func TestListTicketsVisibility(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.CreateTicket(ctx, creatorReq, structuredInput())
	require.NoError(t, err)
	mine, err := f.svc.CreateTicket(ctx, otherReq, manualInput())
	require.NoError(t, err)

	adminViews, err := f.svc.ListTickets(ctx, adminReq)
	require.NoError(t, err)
	assert.Len(t, adminViews, 2)

	creatorViews, err := f.svc.ListTickets(ctx, creatorReq)
	require.NoError(t, err)
	require.Len(t, creatorViews, 1)
	assert.Equal(t, creatorReq.UserID, creatorViews[0].Ticket.CreatedByID)

	// Assignment makes a foreign ticket visible.
	assigned := mine.Ticket
	assigned.AssignedToID = &creatorReq.UserID
	f.tickets.set(assigned)
	creatorViews, err = f.svc.ListTickets(ctx, creatorReq)
	require.NoError(t, err)
	assert.Len(t, creatorViews, 2)
}

func TestListTicketsNewestFirst(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	first, err := f.svc.CreateTicket(ctx, creatorReq, structuredInput())
	require.NoError(t, err)
	second, err := f.svc.CreateTicket(ctx, creatorReq, manualInput())
	require.NoError(t, err)

	views, err := f.svc.ListTickets(ctx, creatorReq)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, second.Ticket.ID, views[0].Ticket.ID)
	assert.Equal(t, first.Ticket.ID, views[1].Ticket.ID)
}

func TestPostMessageAppendsAndReloads(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	created, err := f.svc.CreateTicket(ctx, creatorReq, structuredInput())
	require.NoError(t, err)

	contents := []string{"first", "second", "third"}
	var thread *ThreadView
	for _, content := range contents {
		thread, err = f.svc.PostMessage(ctx, created.Ticket.ID, creatorReq, content)
		require.NoError(t, err)
	}

	require.Len(t, thread.Messages, len(contents))
	for i, msg := range thread.Messages {
		assert.Equal(t, contents[i], msg.Content)
		assert.Equal(t, creatorReq.UserID, msg.SenderID)
		if i > 0 {
			assert.False(t, msg.CreatedAt.Before(thread.Messages[i-1].CreatedAt),
				"messages must be in non-decreasing createdAt order")
		}
	}
}

func TestPostMessageRejectsBlankContent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	created, err := f.svc.CreateTicket(ctx, creatorReq, structuredInput())
	require.NoError(t, err)

	_, err = f.svc.PostMessage(ctx, created.Ticket.ID, creatorReq, "   \n\t")
	var validation *domain.ValidationError
	require.ErrorAs(t, err, &validation)

	thread, err := f.svc.OpenThread(ctx, created.Ticket.ID, creatorReq)
	require.NoError(t, err)
	assert.Empty(t, thread.Messages, "rejected message must not be persisted")
}

func TestChangeStatusHappyPath(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	created, err := f.svc.CreateTicket(ctx, creatorReq, structuredInput())
	require.NoError(t, err)

	view, err := f.svc.ChangeStatus(ctx, created.Ticket.ID, domain.TicketStatusInProgress, adminReq)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusInProgress, view.Ticket.Status)

	// Skipping RESOLVED is rejected even for the admin.
	_, err = f.svc.ChangeStatus(ctx, created.Ticket.ID, domain.TicketStatusClosed, adminReq)
	var illegal *lifecycle.IllegalTransitionError
	require.ErrorAs(t, err, &illegal)
	assert.Equal(t, domain.TicketStatusInProgress, illegal.From)
}

func TestChangeStatusLostRaceSurfacesActualStatus(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	created, err := f.svc.CreateTicket(ctx, creatorReq, structuredInput())
	require.NoError(t, err)

	// Another actor moves the ticket between our validation read and the
	// conditional patch; the patch must lose and report the actual status.
	f.tickets.beforePatch = func() {
		raced := created.Ticket
		raced.Status = domain.TicketStatusInProgress
		f.tickets.set(raced)
		f.tickets.beforePatch = nil
	}

	_, err = f.svc.ChangeStatus(ctx, created.Ticket.ID, domain.TicketStatusInProgress, adminReq)
	var illegal *lifecycle.IllegalTransitionError
	require.ErrorAs(t, err, &illegal)
	assert.Equal(t, domain.TicketStatusInProgress, illegal.From)
	assert.Equal(t, domain.TicketStatusInProgress, illegal.To)

	// The stored status is exactly what the concurrent winner wrote.
	fresh, err := f.tickets.GetByID(ctx, created.Ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusInProgress, fresh.Status)
}

func TestReopenAsCreator(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	created, err := f.svc.CreateTicket(ctx, creatorReq, structuredInput())
	require.NoError(t, err)
	id := created.Ticket.ID

	for _, status := range []domain.TicketStatus{
		domain.TicketStatusInProgress,
		domain.TicketStatusResolved,
		domain.TicketStatusClosed,
	} {
		_, err = f.svc.ChangeStatus(ctx, id, status, adminReq)
		require.NoError(t, err)
	}

	view, err := f.svc.ReopenAsCreator(ctx, id, creatorReq)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusReopened, view.Ticket.Status)
}

func TestReopenAsCreatorRejectsNonCreator(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	created, err := f.svc.CreateTicket(ctx, creatorReq, structuredInput())
	require.NoError(t, err)

	// Even the admin uses ChangeStatus, not the creator shortcut.
	_, err = f.svc.ReopenAsCreator(ctx, created.Ticket.ID, adminReq)
	require.ErrorIs(t, err, lifecycle.ErrNotAuthorized)
}

func TestDeleteTicketPreconditions(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	created, err := f.svc.CreateTicket(ctx, creatorReq, structuredInput())
	require.NoError(t, err)
	id := created.Ticket.ID

	err = f.svc.DeleteTicket(ctx, id, adminReq)
	require.ErrorIs(t, err, lifecycle.ErrDeleteRequiresClosed)

	for _, status := range []domain.TicketStatus{
		domain.TicketStatusInProgress,
		domain.TicketStatusResolved,
		domain.TicketStatusClosed,
	} {
		_, err = f.svc.ChangeStatus(ctx, id, status, adminReq)
		require.NoError(t, err)
	}

	err = f.svc.DeleteTicket(ctx, id, creatorReq)
	require.ErrorIs(t, err, lifecycle.ErrNotAuthorized)

	require.NoError(t, f.svc.DeleteTicket(ctx, id, adminReq))

	_, err = f.svc.OpenThread(ctx, id, adminReq)
	domainErr := apperrors.ToDomainError(err)
	require.NotNil(t, domainErr)
	assert.Equal(t, "NOT_FOUND", domainErr.Code)
}

func TestDeleteTicketPublishesEvent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	created, err := f.svc.CreateTicket(ctx, creatorReq, structuredInput())
	require.NoError(t, err)
	id := created.Ticket.ID

	var deletedID int64
	f.dispatcher.Subscribe(events.EventTicketDeleted, func(ctx context.Context, event events.Event) error {
		deletedID = event.TicketID
		return nil
	})

	for _, status := range []domain.TicketStatus{
		domain.TicketStatusInProgress,
		domain.TicketStatusResolved,
		domain.TicketStatusClosed,
	} {
		_, err = f.svc.ChangeStatus(ctx, id, status, adminReq)
		require.NoError(t, err)
	}
	require.NoError(t, f.svc.DeleteTicket(ctx, id, adminReq))
	assert.Equal(t, id, deletedID)
}

func TestOpenThreadHidesForeignTickets(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	created, err := f.svc.CreateTicket(ctx, creatorReq, structuredInput())
	require.NoError(t, err)

	_, err = f.svc.OpenThread(ctx, created.Ticket.ID, otherReq)
	domainErr := apperrors.ToDomainError(err)
	require.NotNil(t, domainErr)
	assert.Equal(t, "NOT_FOUND", domainErr.Code)
}

func TestPreviewKeepsRunesIntact(t *testing.T) {
	assert.Equal(t, "short", preview("short", 120))
	assert.Equal(t, "exactly-10", preview("exactly-10", 10))
	assert.Equal(t, "abcdefg...", preview("abcdefghijk", 10))

	// Multi-byte content must never be cut mid-rune.
	body := "Maschinenstörung an Förderband zwei gemeldet"
	for max := 4; max <= len(body); max++ {
		got := preview(body, max)
		assert.True(t, utf8.ValidString(got), "preview(%q, %d) = %q is not valid UTF-8", body, max, got)
		assert.LessOrEqual(t, len(got), max)
	}
}

func TestProjectionNeverExposesRejectedTransition(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	created, err := f.svc.CreateTicket(ctx, creatorReq, structuredInput())
	require.NoError(t, err)
	id := created.Ticket.ID

	for _, requester := range []domain.Requester{adminReq, creatorReq} {
		views, err := f.svc.ListTickets(ctx, requester)
		require.NoError(t, err)
		for _, view := range views {
			for _, target := range view.AllowedTransitions {
				ticket := view.Ticket
				_, err := lifecycle.RequestTransition(&ticket, target, requester)
				assert.NoError(t, err, "projection offered %s→%s which the engine rejects", ticket.Status, target)
			}
		}
	}

	_, err = f.svc.ChangeStatus(ctx, id, domain.TicketStatusInProgress, adminReq)
	require.NoError(t, err)
	views, err := f.svc.ListTickets(ctx, creatorReq)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Empty(t, views[0].AllowedTransitions, "non-admin creator has no legal move on IN_PROGRESS")
}
