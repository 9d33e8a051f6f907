package broadcast

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"github.com/vedran77/campuschat/internal/config"
	"github.com/vedran77/campuschat/internal/domain"
	"github.com/vedran77/campuschat/internal/metrics"
	"go.uber.org/zap"
)

// Publisher implements service.Notifier on top of a Broker. Delivery is best
// effort: failures are logged and counted, never returned, and an open
// breaker skips the broker entirely.
type Publisher struct {
	broker  Broker
	cb      *gobreaker.CircuitBreaker
	timeout time.Duration
	log     *zap.Logger
}

func NewPublisher(broker Broker, cfg config.BroadcastConfig, log *zap.Logger) *Publisher {
	st := gobreaker.Settings{
		Name:        "broadcast",
		MaxRequests: 1,
		Interval:    cfg.Breaker.Interval,
		Timeout:     cfg.Breaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.Breaker.MaxFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Info("circuit breaker state", zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	}
	timeout := cfg.PublishTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Publisher{
		broker:  broker,
		cb:      gobreaker.NewCircuitBreaker(st),
		timeout: timeout,
		log:     log,
	}
}

func (p *Publisher) NotifyNewMessage(msg *domain.Message) {
	payload := NewMessagePayload{
		Type:       string(domain.ConversationPrivate),
		Message:    msg,
		SenderID:   msg.SenderID,
		ReceiverID: msg.ReceiverID,
		GroupID:    msg.GroupID,
	}
	if msg.IsGroup() {
		payload.Type = string(domain.ConversationGroup)
	}
	p.publish(EventNewMessage, ThreadTopic(msg), payload)
}

// NotifyMessagesRead tells each original sender how many of their messages
// were read. Receipts with nothing marked are skipped.
func (p *Publisher) NotifyMessagesRead(receipts []domain.ReadReceipt) {
	for _, rc := range receipts {
		if rc.MarkedCount <= 0 {
			continue
		}
		p.publish(EventMessageRead, UserTopic(rc.SenderID), MessageReadPayload{
			ReceiverID:  rc.ReceiverID,
			SenderID:    rc.SenderID,
			GroupID:     rc.GroupID,
			MarkedCount: rc.MarkedCount,
		})
	}
}

func (p *Publisher) NotifyMessageEdited(msg *domain.Message) {
	p.publish(EventMessageEdited, ThreadTopic(msg), MessageEditedPayload{Message: msg})
}

func (p *Publisher) NotifyMemberRemoved(groupID, userID uuid.UUID) {
	p.publish(EventMemberRemoved, UserTopic(userID), MemberRemovedPayload{GroupID: groupID, UserID: userID})
}

func (p *Publisher) NotifyGroupDeleted(groupID uuid.UUID) {
	p.publish(EventGroupDeleted, GroupTopic(groupID), GroupDeletedPayload{GroupID: groupID})
}

func (p *Publisher) publish(event, topic string, payload any) {
	env, err := NewEnvelope(event, topic, payload)
	if err != nil {
		p.log.Error("encoding broadcast envelope", zap.String("event", event), zap.Error(err))
		metrics.BroadcastsPublished.WithLabelValues(event, "error").Inc()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	_, err = p.cb.Execute(func() (interface{}, error) {
		return nil, p.broker.Publish(ctx, env)
	})
	if err != nil {
		p.log.Warn("broadcast publish failed",
			zap.String("event", event),
			zap.String("channel", topic),
			zap.Error(err),
		)
		metrics.BroadcastsPublished.WithLabelValues(event, "error").Inc()
		return
	}
	metrics.BroadcastsPublished.WithLabelValues(event, "ok").Inc()
}
