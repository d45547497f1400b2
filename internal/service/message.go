package service

import (
	"sync"
	"time"

	"github.com/treechat-dev/treechat/internal/domain"
	"github.com/treechat-dev/treechat/internal/errors"
	"github.com/treechat-dev/treechat/internal/logger"
	"github.com/treechat-dev/treechat/internal/scheduler"
)

// fireAtLayout is the wall-clock format clients submit together with an IANA
// timezone name.
const fireAtLayout = "2006-01-02T15:04:05"

type MessageService interface {
	Send(msg domain.Message) (domain.MessageId, error)
	ScheduleMessage(msg domain.Message, fireAt, tz string) (domain.MessageId, error)
	CancelScheduledMessage(author domain.UserId, id domain.MessageId) error
}

type MessageStorage interface {
	SaveScheduled(msg domain.Message) (domain.MessageId, error)
	SaveSent(msg domain.Message) (domain.MessageId, error)
	MarkMessageSent(id domain.MessageId) error
	DeleteScheduledMessage(id domain.MessageId) error
	Message(id domain.MessageId) (domain.Message, error)
}

// Sender delivers a message to its chat. The transport behind it is not this
// package's concern; the default implementation only logs.
type Sender interface {
	Deliver(msg domain.Message) error
}

// LogSender is the default Sender: delivery is observable in the logs and
// nothing else happens.
type LogSender struct{}

func (LogSender) Deliver(msg domain.Message) error {
	logger.Log.Info("message delivered", "message_id", msg.Id, "chat_id", msg.ChatId, "author_id", msg.AuthorId)
	return nil
}

type Message struct {
	storage MessageStorage
	sender  Sender
	sched   *scheduler.Scheduler

	// One lock for all authors' bookkeeping. Entries are removed by the
	// send task itself or by cancellation, whichever comes first. The map
	// does not preserve scheduling order; a listing endpoint would need to
	// order by the persisted rows instead.
	mu        sync.Mutex
	scheduled map[domain.UserId]map[domain.MessageId]*scheduler.Handle
}

func NewMessage(storage MessageStorage, sender Sender, sched *scheduler.Scheduler) *Message {
	if sender == nil {
		sender = LogSender{}
	}
	return &Message{
		storage:   storage,
		sender:    sender,
		sched:     sched,
		scheduled: make(map[domain.UserId]map[domain.MessageId]*scheduler.Handle),
	}
}

// Send persists and delivers a message immediately.
func (m *Message) Send(msg domain.Message) (domain.MessageId, error) {
	id, err := m.storage.SaveSent(msg)
	if err != nil {
		return -1, err
	}
	msg.Id = id
	msg.Status = domain.MessageSent

	if err := m.sender.Deliver(msg); err != nil {
		logger.Log.Error("failed to deliver message", "message_id", id, "error", err)
	}
	return id, nil
}

// ScheduleMessage persists a draft and schedules its one-shot delivery at
// fireAt interpreted in the tz timezone. The draft only leaves the scheduled
// state through delivery or cancellation.
func (m *Message) ScheduleMessage(msg domain.Message, fireAt, tz string) (domain.MessageId, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return -1, errors.InvalidInput("unknown timezone: %s", tz)
	}
	target, err := time.ParseInLocation(fireAtLayout, fireAt, loc)
	if err != nil {
		return -1, errors.InvalidInput("bad fire_at, want %s", fireAtLayout)
	}
	delay := time.Until(target)
	if delay <= 0 {
		return -1, errors.InvalidInput("fire_at must be in the future")
	}

	id, err := m.storage.SaveScheduled(msg)
	if err != nil {
		return -1, err
	}
	msg.Id = id

	handle, err := m.sched.ScheduleOnce(m.sendTask(msg), delay)
	if err != nil {
		if derr := m.storage.DeleteScheduledMessage(id); derr != nil {
			logger.Log.Error("failed to clean up draft after scheduling error", "message_id", id, "error", derr)
		}
		return -1, err
	}

	m.mu.Lock()
	byAuthor, ok := m.scheduled[msg.AuthorId]
	if !ok {
		byAuthor = make(map[domain.MessageId]*scheduler.Handle)
		m.scheduled[msg.AuthorId] = byAuthor
	}
	byAuthor[id] = handle
	m.mu.Unlock()

	logger.Log.Info("message scheduled", "message_id", id, "author_id", msg.AuthorId, "fire_in", delay)
	return id, nil
}

// CancelScheduledMessage drops a pending delivery. Unknown ids are a no-op:
// the message may have been delivered (or cancelled) a moment ago and that
// is not an error worth surfacing.
func (m *Message) CancelScheduledMessage(author domain.UserId, id domain.MessageId) error {
	m.mu.Lock()
	byAuthor := m.scheduled[author]
	handle, ok := byAuthor[id]
	if ok {
		delete(byAuthor, id)
		if len(byAuthor) == 0 {
			delete(m.scheduled, author)
		}
	}
	m.mu.Unlock()

	if !ok {
		return nil
	}

	if err := m.sched.Cancel(handle); err != nil {
		logger.Log.Warn("failed to cancel delivery handle", "message_id", id, "error", err)
	}
	if err := m.storage.DeleteScheduledMessage(id); err != nil {
		return err
	}
	logger.Log.Info("scheduled message cancelled", "message_id", id, "author_id", author)
	return nil
}

// sendTask builds the delivery body: mark the row sent, deliver, drop the
// bookkeeping entry. If cancellation won the race the row is already gone
// and the task backs off without delivering.
func (m *Message) sendTask(msg domain.Message) scheduler.Task {
	return func() {
		defer m.removeEntry(msg.AuthorId, msg.Id)

		if err := m.storage.MarkMessageSent(msg.Id); err != nil {
			logger.Log.Warn("scheduled message no longer deliverable", "message_id", msg.Id, "error", err)
			return
		}
		msg.Status = domain.MessageSent
		if err := m.sender.Deliver(msg); err != nil {
			logger.Log.Error("failed to deliver scheduled message", "message_id", msg.Id, "error", err)
		}
	}
}

func (m *Message) removeEntry(author domain.UserId, id domain.MessageId) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byAuthor := m.scheduled[author]
	delete(byAuthor, id)
	if len(byAuthor) == 0 {
		delete(m.scheduled, author)
	}
}

// ScheduledCount reports the number of pending deliveries for an author.
func (m *Message) ScheduledCount(author domain.UserId) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.scheduled[author])
}
