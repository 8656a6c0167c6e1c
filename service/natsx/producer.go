package natsx

import (
	"context"
	"encoding/json"
	"time"

	"PNotify/service/notify"
	"PNotify/tools/errs"
	"PNotify/tools/ids"

	"github.com/nats-io/nats.go"
)

// HeaderMsgID is the dedup header understood by IdemMiddleware.
const HeaderMsgID = "Nats-Msg-Id"

type msgPublisher interface {
	PublishMsg(m *nats.Msg) error
}

// Publisher sends delivery envelopes for a gateway to pick up. Retries
// apply to publish errors only.
type Publisher struct {
	pub     msgPublisher
	subject string
	Retries int
	Backoff time.Duration
}

func NewPublisher(c *Client, subject string) *Publisher {
	return &Publisher{pub: c.nc, subject: subject, Retries: 2, Backoff: 100 * time.Millisecond}
}

// PublishTo asks the gateway to deliver n to identity.
func (p *Publisher) PublishTo(ctx context.Context, identity string, n notify.Notification) error {
	return p.Publish(ctx, Envelope{To: identity}, n)
}

// PublishBroadcast asks the gateway to push n to everyone online except exclude.
func (p *Publisher) PublishBroadcast(ctx context.Context, exclude string, n notify.Notification) error {
	return p.Publish(ctx, Envelope{Broadcast: true, Exclude: exclude}, n)
}

// EncodeEnvelope fills env.Notification from n and returns the body.
func EncodeEnvelope(env Envelope, n notify.Notification) ([]byte, error) {
	raw, err := notify.Marshal(n)
	if err != nil {
		return nil, err
	}
	env.Notification = raw
	data, err := json.Marshal(env)
	if err != nil {
		return nil, errs.Wrap(err)
	}
	return data, nil
}

// Publish sends env carrying n with a fresh message id.
func (p *Publisher) Publish(ctx context.Context, env Envelope, n notify.Notification) error {
	data, err := EncodeEnvelope(env, n)
	if err != nil {
		return err
	}

	msg := nats.NewMsg(p.subject)
	msg.Data = data
	msg.Header.Set(HeaderMsgID, ids.GenerateString())

	for i := 0; ; i++ {
		err = p.pub.PublishMsg(msg)
		if err == nil || i >= p.Retries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.Backoff):
		}
	}
	if err != nil {
		return errs.WrapMsg(err, "nats publish", "subject", p.subject)
	}
	return nil
}
