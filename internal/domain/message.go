package domain

import "time"

type MessageId = int64
type ChatId = int64

type MessageStatus string

const (
	MessageScheduled MessageStatus = "scheduled"
	MessageSent      MessageStatus = "sent"
)

type Message struct {
	Id        MessageId
	ChatId    ChatId
	AuthorId  UserId
	Text      string
	Status    MessageStatus
	CreatedAt time.Time
}
