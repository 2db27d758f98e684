package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/invenops/ticketing/internal/domain"
	"github.com/invenops/ticketing/internal/events"
)

// Manager owns the active viewer sessions. It hands the same session back to
// repeated calls for a user, evicts sessions idle past the TTL, and closes
// thread views when tickets are deleted out from under them.
type Manager struct {
	ctrl    Controller
	logger  *zap.Logger
	idleTTL time.Duration

	mu       sync.RWMutex
	sessions map[int64]*Session

	ctx    context.Context
	cancel context.CancelFunc
}

// NewManager builds the manager and starts its idle-eviction loop.
func NewManager(ctrl Controller, logger *zap.Logger, idleTTL time.Duration) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		ctrl:     ctrl,
		logger:   logger,
		idleTTL:  idleTTL,
		sessions: make(map[int64]*Session),
		ctx:      ctx,
		cancel:   cancel,
	}
	go m.evictLoop()
	return m
}

// RegisterHandlers subscribes the manager to deletion events so open thread
// views close immediately, not on the next poll.
func (m *Manager) RegisterHandlers(dispatcher events.Dispatcher) {
	if dispatcher == nil {
		return
	}
	dispatcher.Subscribe(events.EventTicketDeleted, func(ctx context.Context, event events.Event) error {
		m.ForceCloseThreads(event.TicketID)
		return nil
	})
}

// Get returns the session for the requester, creating it on first use.
func (m *Manager) Get(requester domain.Requester) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.sessions[requester.UserID]; ok {
		existing.Touch()
		return existing
	}
	created := New(requester, m.ctrl)
	m.sessions[requester.UserID] = created
	return created
}

// Active returns the current sessions; the scheduler iterates this each tick.
func (m *Manager) Active() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

// ForceCloseThreads closes the thread view of every session showing the
// ticket.
func (m *Manager) ForceCloseThreads(ticketID int64) {
	for _, s := range m.Active() {
		s.ForceCloseThread(ticketID)
	}
}

// Close stops the eviction loop and drops all sessions.
func (m *Manager) Close() {
	m.cancel()
	m.mu.Lock()
	m.sessions = make(map[int64]*Session)
	m.mu.Unlock()
}

func (m *Manager) evictLoop() {
	interval := m.idleTTL / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.evictIdle()
		}
	}
}

func (m *Manager) evictIdle() {
	cutoff := time.Now().Add(-m.idleTTL)
	m.mu.Lock()
	defer m.mu.Unlock()
	for userID, s := range m.sessions {
		if s.IdleSince().Before(cutoff) {
			delete(m.sessions, userID)
			if m.logger != nil {
				m.logger.Debug("evicted idle session", zap.Int64("user_id", userID))
			}
		}
	}
}
