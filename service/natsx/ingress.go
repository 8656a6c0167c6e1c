package natsx

import (
	"context"
	"encoding/json"

	"PNotify/service/chat"
	"PNotify/service/notify"
	"PNotify/tools/errs"

	"go.uber.org/zap"
)

// Envelope is the JSON body published on the delivery subject.
type Envelope struct {
	To           string          `json:"to,omitempty"`
	Broadcast    bool            `json:"broadcast,omitempty"`
	Exclude      string          `json:"exclude,omitempty"`
	Notification json.RawMessage `json:"notification"`
}

// Deliverer is the dispatcher as seen from the ingress.
type Deliverer interface {
	Deliver(identity string, n notify.Notification) chat.DeliveryResult
	Broadcast(n notify.Notification, exclude string) chat.BroadcastReport
}

// Ingress turns envelopes from NATS into dispatcher calls.
type Ingress struct {
	d   Deliverer
	log *zap.Logger
}

func NewIngress(d Deliverer, log *zap.Logger) *Ingress {
	if log == nil {
		log = zap.NewNop()
	}
	return &Ingress{d: d, log: log}
}

// Handle decodes one envelope. Bad envelopes are returned as errors and
// never reach the dispatcher.
func (in *Ingress) Handle(_ context.Context, msg Message) error {
	var env Envelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		return errs.ErrArgs.WrapMsg("decode envelope", "err", err)
	}
	if len(env.Notification) == 0 {
		return errs.ErrArgs.WrapMsg("envelope without notification")
	}
	n, err := notify.Parse(env.Notification)
	if err != nil {
		return err
	}

	if env.Broadcast {
		rep := in.d.Broadcast(n, env.Exclude)
		in.log.Debug("nats broadcast", zap.String("type", string(n.Kind())),
			zap.Int("delivered", len(rep.Delivered)), zap.Int("failed", len(rep.Failed)))
		return nil
	}
	if env.To == "" {
		return errs.ErrArgs.WrapMsg("envelope without recipient")
	}
	res := in.d.Deliver(env.To, n)
	in.log.Debug("nats deliver", zap.String("to", env.To), zap.String("type", string(n.Kind())), zap.Stringer("result", res))
	return nil
}

// Listen subscribes the ingress on subject with dedup in front.
func (in *Ingress) Listen(c *Client, subject, queue string, store IdemStore) error {
	return c.Subscribe(subject, queue, in.Handle, IdemMiddleware(store, 0, in.log))
}
