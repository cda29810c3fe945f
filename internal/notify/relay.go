package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/ariefcatur/go-marketplace/internal/apperr"
	"github.com/ariefcatur/go-marketplace/internal/events"
	kafkax "github.com/ariefcatur/go-marketplace/internal/kafka"
	"github.com/ariefcatur/go-marketplace/internal/redisx"
)

type Mail struct {
	To      string
	Subject string
	Body    string
}

// Mailer is the outbound email collaborator.
type Mailer interface {
	Send(ctx context.Context, m Mail) error
}

// LogMailer writes mails to the log instead of sending them.
type LogMailer struct{ Log logrus.FieldLogger }

func (l LogMailer) Send(ctx context.Context, m Mail) error {
	l.Log.WithFields(logrus.Fields{"to": m.To, "subject": m.Subject}).Info("mail")
	return nil
}

type EmailLookup interface {
	Email(ctx context.Context, userID string) (string, error)
}

// Relay turns NotificationCreated events into mails. Delivery is best
// effort: mail failures are logged and the message is still acknowledged.
type Relay struct {
	Users  EmailLookup
	Mailer Mailer
	Redis  *redis.Client // optional dedup across redeliveries
	Log    logrus.FieldLogger
}

// Handle is a kafka.Handler.
func (r *Relay) Handle(ctx context.Context, m kafkago.Message) error {
	env, err := kafkax.DecodeEnvelope(m)
	if err != nil {
		r.Log.WithError(err).Warn("dropping undecodable message")
		return nil
	}
	if env.EventType != events.EventNotificationCreated {
		return nil
	}
	log := r.Log.WithField("event_id", env.EventID)

	dedupKey := fmt.Sprintf(redisx.KeyDedup, "mailer", env.EventID)
	if r.Redis != nil {
		if seen, _ := redisx.Exists(ctx, r.Redis, dedupKey); seen {
			return nil
		}
	}

	p, err := events.Unwrap[events.NotificationCreatedPayload](env)
	if err != nil {
		log.WithError(err).Warn("dropping malformed notification")
		return nil
	}
	to, err := r.Users.Email(ctx, p.UserID)
	if err != nil {
		if apperr.Is(err, apperr.CodeNotFound) {
			log.WithField("user_id", p.UserID).Info("recipient no longer exists")
			return nil
		}
		// storage trouble is retried in place by the consumer
		return err
	}

	if err := r.Mailer.Send(ctx, Mail{To: to, Subject: p.Title, Body: p.Description}); err != nil {
		log.WithError(err).Error("mail delivery failed")
		return nil
	}
	if r.Redis != nil {
		if err := r.Redis.Set(ctx, dedupKey, "1", redisx.TTLDedup).Err(); err != nil && !errors.Is(err, context.Canceled) {
			log.WithError(err).Warn("dedup mark failed")
		}
	}
	return nil
}
