package main

import (
	"context"
	"encoding/json"
	"strconv"

	"PNotify/global/config"
	"PNotify/logger"
	"PNotify/service/kafka"
	"PNotify/service/natsx"
	"PNotify/service/notify"
	"PNotify/tools/errs"
	"PNotify/tools/ids"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type sendOpts struct {
	to        string
	broadcast bool
	exclude   string
	kind      string
	payload   string
	via       string
}

func newSendCmd(envFiles *[]string) *cobra.Command {
	var o sendOpts

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Publish a notification to the gateway through NATS or Kafka",
		Example: `  ppnotify send --to alice --type friend_request --payload '{"from":"bob"}'
  ppnotify send --broadcast --exclude bob --type new_message --payload '{"direction":"received","message":{"id":1}}' --via kafka`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*envFiles...)
			if err != nil {
				return err
			}
			logger.SetLevel(cfg.LogLevel)
			ids.SetNodeID(cfg.NodeID)
			return runSend(cmd.Context(), cfg, o, logger.Log)
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.to, "to", "", "recipient identity")
	f.BoolVar(&o.broadcast, "broadcast", false, "push to every connected identity")
	f.StringVar(&o.exclude, "exclude", "", "identity skipped by --broadcast")
	f.StringVar(&o.kind, "type", "", "notification type")
	f.StringVar(&o.payload, "payload", "{}", "notification fields as a JSON object")
	f.StringVar(&o.via, "via", "", "nats or kafka (default: whichever is configured, nats first)")
	cmd.MarkFlagsMutuallyExclusive("to", "broadcast")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func (o sendOpts) build() (natsx.Envelope, notify.Notification, error) {
	kind := notify.Kind(o.kind)
	if !kind.Valid() {
		return natsx.Envelope{}, notify.Notification{}, errs.ErrUnknownKind.WrapMsg("", "type", o.kind)
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(o.payload), &payload); err != nil {
		return natsx.Envelope{}, notify.Notification{}, errs.ErrArgs.WrapMsg("payload must be a JSON object", "err", err)
	}
	if !o.broadcast && o.to == "" {
		return natsx.Envelope{}, notify.Notification{}, errs.ErrArgs.WrapMsg("--to or --broadcast is required")
	}
	env := natsx.Envelope{To: o.to, Broadcast: o.broadcast, Exclude: o.exclude}
	return env, notify.New(kind, payload), nil
}

func (o sendOpts) transport(cfg *config.AppConfig) (string, error) {
	switch o.via {
	case "nats", "kafka":
		return o.via, nil
	case "":
		if len(cfg.NATS.URLs) > 0 {
			return "nats", nil
		}
		if len(cfg.Kafka.Brokers) > 0 {
			return "kafka", nil
		}
		return "", errs.ErrConfig.WrapMsg("set NATS_URL or KAFKA_BROKERS")
	default:
		return "", errs.ErrArgs.WrapMsg("--via must be nats or kafka", "via", o.via)
	}
}

func runSend(ctx context.Context, cfg *config.AppConfig, o sendOpts, log *zap.Logger) error {
	env, n, err := o.build()
	if err != nil {
		return err
	}
	via, err := o.transport(cfg)
	if err != nil {
		return err
	}

	switch via {
	case "nats":
		c, err := natsx.Connect(natsx.Config{
			Servers:  cfg.NATS.URLs,
			Name:     "ppnotify-send-" + strconv.FormatInt(cfg.NodeID, 10),
			User:     cfg.NATS.User,
			Password: cfg.NATS.Password,
		}, logger.Named(log, "nats"))
		if err != nil {
			return err
		}
		defer c.Close()
		if err := natsx.NewPublisher(c, cfg.NATS.Subject).Publish(ctx, env, n); err != nil {
			return err
		}
		// 等待发送缓冲刷到服务端
		if err := c.Conn().FlushWithContext(ctx); err != nil {
			return errs.WrapMsg(err, "nats flush")
		}
	case "kafka":
		p, err := kafka.NewProducer(kafkaConfig(cfg))
		if err != nil {
			return err
		}
		defer p.Close()
		data, err := natsx.EncodeEnvelope(env, n)
		if err != nil {
			return err
		}
		if err := p.Send(env.To, data, map[string]string{natsx.HeaderMsgID: ids.GenerateString()}); err != nil {
			return err
		}
	}
	log.Info("sent", zap.String("via", via), zap.String("type", string(n.Kind())),
		zap.String("to", env.To), zap.Bool("broadcast", env.Broadcast))
	return nil
}
