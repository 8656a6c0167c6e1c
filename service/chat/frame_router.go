package chat

import (
	"PNotify/service/notify"
	"PNotify/tools/errs"

	"go.uber.org/zap"
)

// FrameHandler handles one kind of inbound frame.
type FrameHandler interface {
	Kind() notify.Kind
	Handle(ctx *FrameContext, n notify.Notification) error
}

// FrameContext is what a handler knows about the sending connection.
type FrameContext struct {
	Identity  string
	Transport Transport
	Log       *zap.Logger
}

type FrameRouter struct {
	handlers map[notify.Kind]FrameHandler
}

func NewFrameRouter() *FrameRouter {
	return &FrameRouter{handlers: make(map[notify.Kind]FrameHandler)}
}

func (r *FrameRouter) Register(h FrameHandler) { r.handlers[h.Kind()] = h }

func (r *FrameRouter) Route(ctx *FrameContext, n notify.Notification) error {
	h, ok := r.handlers[n.Kind()]
	if !ok {
		return errs.ErrUnknownKind.WrapMsg("no handler", "type", n.Kind())
	}
	return h.Handle(ctx, n)
}

// pingHandler answers a ping on the same transport, bypassing the dispatcher.
type pingHandler struct{}

func (pingHandler) Kind() notify.Kind { return notify.KindPing }

func (pingHandler) Handle(ctx *FrameContext, _ notify.Notification) error {
	data, err := notify.Marshal(notify.Pong())
	if err != nil {
		return err
	}
	return ctx.Transport.Push(data)
}
