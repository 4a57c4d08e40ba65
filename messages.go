package courier

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Email is the durable record of a sent email. Data is the payload passed
// to send, Context the values frozen at send time. Sender and Recipient are
// audit columns holding what was used at delivery.
type Email struct {
	ID        uuid.UUID  `json:"id"`
	Type      string     `json:"type"`
	Data      Context    `json:"data"`
	Context   Context    `json:"context"`
	UserID    string     `json:"user_id,omitempty"`
	Sender    string     `json:"sender"`
	Recipient string     `json:"recipient"`
	CreatedAt time.Time  `json:"created_at"`
	SentAt    *time.Time `json:"sent_at,omitempty"`
}

// LinkHTML returns the relative permalink showing this email as HTML in a
// browser. Useful for debugging and for "view in browser" links.
func (e *Email) LinkHTML() string {
	return fmt.Sprintf("/email/%s.html", e.ID)
}

// LinkText returns the relative permalink showing this email as text.
func (e *Email) LinkText() string {
	return fmt.Sprintf("/email/%s.txt", e.ID)
}

// Sms is the durable record of a sent text message.
type Sms struct {
	ID        uuid.UUID  `json:"id"`
	Type      string     `json:"type"`
	Data      Context    `json:"data"`
	Context   Context    `json:"context"`
	UserID    string     `json:"user_id,omitempty"`
	Sender    string     `json:"sender"`
	Recipient string     `json:"recipient"`
	CreatedAt time.Time  `json:"created_at"`
	SentAt    *time.Time `json:"sent_at,omitempty"`
}

// Link returns the relative permalink showing this message in a browser.
func (s *Sms) Link() string {
	return fmt.Sprintf("/sms/%s", s.ID)
}
