package natsx

import (
	"context"

	"PNotify/tools/errs"
	"PNotify/tools/safe"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Subscribe registers h on subject. A non-empty queue joins a queue group so
// only one gateway instance handles each message.
func (c *Client) Subscribe(subject, queue string, h Handler, mws ...Middleware) error {
	if subject == "" {
		return errs.ErrArgs.WrapMsg("empty subject")
	}
	h = Chain(h, mws...)
	cb := func(m *nats.Msg) {
		msg := Message{
			Subject: m.Subject,
			Data:    append([]byte(nil), m.Data...),
			Header:  headerToMap(m.Header),
		}
		safe.Run(c.log, "nats-handler", func() {
			if err := h(context.Background(), msg); err != nil {
				c.log.Warn("nats handler failed", zap.String("subject", m.Subject), zap.Error(err))
			}
		})
	}

	var (
		sub *nats.Subscription
		err error
	)
	if queue == "" {
		sub, err = c.nc.Subscribe(subject, cb)
	} else {
		sub, err = c.nc.QueueSubscribe(subject, queue, cb)
	}
	if err != nil {
		return errs.WrapMsg(err, "nats subscribe", "subject", subject)
	}
	_ = sub.SetPendingLimits(1_000_000, 64*1024*1024)

	c.mu.Lock()
	if old, ok := c.subs[subject]; ok {
		_ = old.Unsubscribe()
	}
	c.subs[subject] = sub
	c.mu.Unlock()
	c.log.Info("nats subscribed", zap.String("subject", subject), zap.String("queue", queue))
	return nil
}

func headerToMap(h nats.Header) map[string]string {
	if len(h) == 0 {
		return nil
	}
	out := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}
