package domain

import (
	"time"

	"github.com/google/uuid"
)

// MessageStatus is the delivery state of an admin message.
type MessageStatus string

const (
	MessageSent MessageStatus = "sent"
	MessageRead MessageStatus = "read"
)

// AdminMessage is a one-way admin-to-user message.
type AdminMessage struct {
	ID          uuid.UUID
	FromAdminID uuid.UUID
	ToUserID    uuid.UUID
	Message     string
	Status      MessageStatus
	SentAt      time.Time
}
