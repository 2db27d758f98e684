package domain

import "time"

// Message is one entry in a ticket's conversation thread. Messages are
// append-only: once written they are never edited or deleted, and they stay
// in the store's (CreatedAt, ID) ascending order.
type Message struct {
	ID        int64
	TicketID  int64
	SenderID  int64
	Content   string
	CreatedAt time.Time
}
