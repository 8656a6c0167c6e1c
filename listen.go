package main

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"PNotify/global/config"
	"PNotify/logger"
	"PNotify/service/notify"
	"PNotify/service/session"
	"PNotify/service/wsclient"
	"PNotify/tools/errs"
	"PNotify/tools/safe"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var listenKinds = []notify.Kind{
	notify.KindConnection,
	notify.KindNewMessage,
	notify.KindFriendRequest,
	notify.KindFriendRequestResponse,
}

func newListenCmd(envFiles *[]string) *cobra.Command {
	var wsURL, sid, as string

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Connect as a client and print incoming notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*envFiles...)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("url") {
				cfg.Client.URL = wsURL
			}
			if cmd.Flags().Changed("session") {
				cfg.Client.Session = sid
			}
			logger.SetLevel(cfg.LogLevel)

			header, err := clientHeader(cfg, as)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runListen(ctx, cfg, header, logger.Log)
		},
	}
	cmd.Flags().StringVar(&wsURL, "url", "", "gateway WebSocket URL, overrides CLIENT_URL")
	cmd.Flags().StringVar(&sid, "session", "", "session id sent as cookie, overrides CLIENT_SESSION")
	cmd.Flags().StringVar(&as, "as", "", "sign a bearer token for this identity with JWT_SECRET instead of using a session")
	return cmd
}

// clientHeader carries either a signed bearer token (as != "") or the
// session cookie.
func clientHeader(cfg *config.AppConfig, as string) (http.Header, error) {
	header := http.Header{}
	if as != "" {
		if cfg.Session.JWTSecret == "" {
			return nil, errs.ErrConfig.WrapMsg("--as needs JWT_SECRET")
		}
		tok, err := session.NewJWTResolver([]byte(cfg.Session.JWTSecret)).Issue(as, 0)
		if err != nil {
			return nil, errs.WrapMsg(err, "sign token")
		}
		header.Set("Authorization", "Bearer "+tok)
		return header, nil
	}
	if cfg.Client.Session != "" {
		header.Set("Cookie", (&http.Cookie{Name: cfg.Gateway.CookieName, Value: cfg.Client.Session}).String())
	}
	return header, nil
}

func runListen(ctx context.Context, cfg *config.AppConfig, header http.Header, log *zap.Logger) error {
	addr, err := probeAddr(cfg.Client.URL)
	if err != nil {
		return err
	}

	m := wsclient.NewManager(wsclient.Options{
		URL:    cfg.Client.URL,
		Header: header,
		Backoff: wsclient.Backoff{
			Base:        cfg.Client.BackoffBase,
			Multiplier:  cfg.Client.BackoffMultiplier,
			Max:         cfg.Client.BackoffMax,
			MaxAttempts: cfg.Client.MaxAttempts,
		},
		ConnectTimeout:    cfg.Client.ConnectTimeout,
		HeartbeatInterval: cfg.Client.HeartbeatInterval,
		ResumeDelay:       cfg.Client.ResumeDelay,
		Logger:            logger.Named(log, "client"),
	})

	for _, kind := range listenKinds {
		m.On(kind, func(n notify.Notification) {
			log.Info("notification", zap.String("type", string(n.Kind())), zap.Any("payload", n.Payload()))
		})
	}
	m.OnStateChange(func(prev, cur wsclient.State, reason string) {
		log.Info("state", zap.Stringer("from", prev), zap.Stringer("to", cur), zap.String("reason", reason))
		if cur == wsclient.Failed {
			log.Warn("giving up, press Ctrl+C to exit")
		}
	})

	probe := &wsclient.NetProbe{
		Addr:     addr,
		Interval: cfg.Client.ProbeInterval,
		Sink:     m,
		Log:      logger.Named(log, "probe"),
	}
	safe.Go(log, "net-probe", func() { probe.Run(ctx) })

	m.Connect()
	<-ctx.Done()
	m.Disconnect()
	return nil
}

// probeAddr turns ws://host[:port]/path into host:port.
func probeAddr(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", errs.ErrConfig.WrapMsg("bad CLIENT_URL", "url", raw)
	}
	host, port := u.Hostname(), u.Port()
	if host == "" {
		return "", errs.ErrConfig.WrapMsg("CLIENT_URL has no host", "url", raw)
	}
	if port == "" {
		switch u.Scheme {
		case "ws", "http":
			port = "80"
		case "wss", "https":
			port = "443"
		default:
			return "", errs.ErrConfig.WrapMsg("CLIENT_URL must be ws:// or wss://", "url", raw)
		}
	}
	return net.JoinHostPort(host, port), nil
}
