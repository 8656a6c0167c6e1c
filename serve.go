package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"PNotify/global/config"
	"PNotify/logger"
	mid "PNotify/middleware"
	"PNotify/service/chat"
	"PNotify/service/health"
	"PNotify/service/kafka"
	"PNotify/service/natsx"
	"PNotify/service/session"
	"PNotify/service/storage"
	"PNotify/service/storage/mgo"
	"PNotify/service/storage/pg"
	redisx "PNotify/service/storage/redis"
	"PNotify/tools/errs"
	"PNotify/tools/ids"
	"PNotify/tools/safe"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(envFiles *[]string) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the notification gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*envFiles...)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}
			logger.SetLevel(cfg.LogLevel)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, logger.Log)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "HTTP listen address, overrides HTTP_ADDR")
	return cmd
}

// backends are the optional session stores and their cleanup.
type backends struct {
	resolver session.Resolver
	presence *storage.Presence
	rdb      *redis.Client
	checks   []health.Check
	closers  []func()
}

func (b *backends) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// ===== 组装会话解析链 =====

func openBackends(ctx context.Context, cfg *config.AppConfig, log *zap.Logger) (*backends, error) {
	b := &backends{}
	var chain session.Chain

	if cfg.Session.JWTSecret != "" {
		chain = append(chain, session.NewJWTResolver([]byte(cfg.Session.JWTSecret)))
		log.Info("session: jwt enabled")
	}
	if len(cfg.Session.Static) > 0 {
		mem := session.NewMemoryStore()
		for sid, identity := range cfg.Session.Static {
			mem.Put(sid, identity)
		}
		chain = append(chain, mem)
		log.Warn("session: static sessions enabled", zap.Int("count", len(cfg.Session.Static)))
	}

	var rdb *redis.Client
	if cfg.Session.RedisURL != "" {
		client, err := redisx.Connect(ctx, redisx.Config{URL: cfg.Session.RedisURL})
		if err != nil {
			b.close()
			return nil, err
		}
		rdb = client
		b.rdb = client
		b.closers = append(b.closers, func() { _ = client.Close() })
		b.checks = append(b.checks, health.Check{Name: "redis", Fn: redisx.Healthcheck(rdb)})
		b.presence = storage.NewPresence(rdb, strconv.FormatInt(cfg.NodeID, 10), cfg.Session.PresenceTTL, logger.Named(log, "presence"))
		log.Info("redis connected")
	}

	if cfg.Session.PostgresDSN != "" {
		pool, err := pg.Connect(ctx, pg.Config{DSN: cfg.Session.PostgresDSN})
		if err != nil {
			b.close()
			return nil, err
		}
		b.closers = append(b.closers, pool.Close)
		b.checks = append(b.checks, health.Check{Name: "postgres", Fn: pg.Healthcheck(pool)})

		var store session.Resolver = session.NewPgStore(pool)
		if rdb != nil {
			store = session.NewRedisCache(rdb, store, cfg.Session.CacheTTL, logger.Named(log, "session"))
		}
		chain = append(chain, store)
		log.Info("session: postgres", zap.Bool("redis_cache", rdb != nil))
	}

	if cfg.Session.MongoURI != "" {
		db, err := mgo.Connect(ctx, mgo.Config{URI: cfg.Session.MongoURI, Database: cfg.Session.MongoDB})
		if err != nil {
			b.close()
			return nil, err
		}
		b.closers = append(b.closers, func() { _ = db.Client().Disconnect(context.Background()) })
		b.checks = append(b.checks, health.Check{Name: "mongo", Fn: mgo.Healthcheck(db)})

		var store session.Resolver = session.NewMongoStore(db.Collection(cfg.Session.MongoColl))
		if rdb != nil {
			store = session.NewRedisCache(rdb, store, cfg.Session.CacheTTL, logger.Named(log, "session"))
		}
		chain = append(chain, store)
		log.Info("session: mongo", zap.String("collection", cfg.Session.MongoColl))
	}

	if len(chain) == 0 {
		b.close()
		return nil, errs.ErrConfig.WrapMsg("no session backend, set one of DATABASE_URL MONGO_URI JWT_SECRET SESSION_STATIC")
	}
	b.resolver = chain
	return b, nil
}

func runServe(ctx context.Context, cfg *config.AppConfig, log *zap.Logger) error {
	ids.SetNodeID(cfg.NodeID)

	be, err := openBackends(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer be.close()

	reg := chat.NewRegistry()
	queue := chat.NewOfflineQueue(cfg.Queue.MaxPerIdentity)
	disp := chat.NewDispatcher(reg, queue, logger.Named(log, "dispatcher"))

	checkOrigin := mid.OriginChecker(cfg.Server.AllowedOrigins)
	gw := chat.NewGateway(chat.GatewayConfig{
		WriteWait:      cfg.Gateway.WriteWait,
		PongWait:       cfg.Gateway.PongWait,
		PingInterval:   cfg.Gateway.PingInterval,
		ResolveTimeout: cfg.Gateway.ResolveTimeout,
		MaxFrameBytes:  cfg.Gateway.MaxFrameBytes,
		FrameRate:      cfg.Gateway.FrameRate,
		FrameBurst:     cfg.Gateway.FrameBurst,
		CheckOrigin:    checkOrigin,
		NodeID:         cfg.NodeID,
		Credentials: session.CredentialOptions{
			CookieName:                cfg.Gateway.CookieName,
			HeaderToken:               cfg.Gateway.HeaderToken,
			QueryParam:                cfg.Gateway.QueryParam,
			EnableAuthorizationBearer: true,
		},
	}, reg, queue, disp, be.resolver, logger.Named(log, "gateway"))
	if be.presence != nil {
		gw.SetPresence(be.presence)
	}

	hs := health.New(reg, queue, logger.Named(log, "health"), be.checks...)

	// NATS / Kafka 入口：其他服务通过它们投递通知
	in := natsx.NewIngress(disp, logger.Named(log, "ingress"))
	var idem natsx.IdemStore
	if be.rdb != nil {
		idem = natsx.NewRedisIdem(be.rdb, 0)
	} else {
		idem = natsx.NewMemIdem(ctx, 0, logger.Named(log, "idem"))
	}
	if len(cfg.NATS.URLs) > 0 {
		nc, err := natsx.Connect(natsx.Config{
			Servers:  cfg.NATS.URLs,
			Name:     "ppnotify-" + strconv.FormatInt(cfg.NodeID, 10),
			User:     cfg.NATS.User,
			Password: cfg.NATS.Password,
		}, logger.Named(log, "nats"))
		if err != nil {
			return err
		}
		defer nc.Close()
		if err := in.Listen(nc, cfg.NATS.Subject, cfg.NATS.Queue, idem); err != nil {
			return err
		}
	}

	if len(cfg.Kafka.Brokers) > 0 {
		kc, err := kafka.NewConsumer(kafkaConfig(cfg), logger.Named(log, "kafka"))
		if err != nil {
			return err
		}
		defer kc.Close()
		// 与 NATS 共用去重表，同一条信封从两个入口进来只投递一次
		h := natsx.Chain(in.Handle, natsx.IdemMiddleware(idem, 0, logger.Named(log, "idem")))
		safe.Go(log, "kafka-ingress", func() {
			err := kc.Run(ctx, func(ctx context.Context, m kafka.Message) error {
				return h(ctx, natsx.Message{Subject: m.Topic, Data: m.Value, Header: m.Header})
			})
			if err != nil {
				log.Error("kafka ingress stopped", zap.Error(err))
			}
		})
		log.Info("kafka ingress", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	if cfg.Server.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
		if err != nil {
			return errs.WrapMsg(err, "grpc listen", "addr", cfg.Server.GRPCAddr)
		}
		gs := health.NewGRPCServer(hs, logger.Named(log, "grpc"))
		safe.Go(log, "grpc-health", func() {
			if err := gs.Serve(ctx, lis); err != nil {
				log.Error("grpc health stopped", zap.Error(err))
			}
		})
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), mid.AccessLog(logger.Named(log, "http")))
	r.Use(mid.NewManager(
		mid.Guard{Name: "origin", Prefix: cfg.Gateway.WSPath, Fn: mid.Origin(checkOrigin)},
		mid.Guard{Name: "handshake-limit", Prefix: cfg.Gateway.WSPath, Fn: mid.HandshakeLimit(cfg.Gateway.HandshakeRate, cfg.Gateway.HandshakeBurst)},
	).Use())
	r.GET(cfg.Gateway.WSPath, gw.HandleWS)
	hs.Register(r, cfg.Server.AdminToken)

	srv := &http.Server{Addr: cfg.Server.Addr, Handler: r}
	serveErr := make(chan error, 1)
	safe.Go(log, "http", func() {
		log.Info("http listening", zap.String("addr", cfg.Server.Addr), zap.String("ws", cfg.Gateway.WSPath))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	})

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return errs.WrapMsg(err, "http serve", "addr", cfg.Server.Addr)
		}
	}

	log.Info("shutting down", zap.Int("online", reg.Count()), zap.Int("pending", queue.CountAll()))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	// 先停监听，再关已劫持的 websocket 连接；之后到达的 Admit 以 1001 拒绝
	err = srv.Shutdown(shutdownCtx)
	gw.Shutdown()
	if err != nil {
		return errs.WrapMsg(err, "http shutdown")
	}
	return nil
}

func kafkaConfig(cfg *config.AppConfig) kafka.Config {
	return kafka.Config{
		Brokers:           cfg.Kafka.Brokers,
		GroupID:           cfg.Kafka.GroupID,
		Topic:             cfg.Kafka.Topic,
		Version:           cfg.Kafka.Version,
		InitialOffset:     cfg.Kafka.InitialOffset,
		Compression:       cfg.Kafka.Compression,
		AutoCreateTopic:   cfg.Kafka.AutoCreateTopic,
		Partitions:        cfg.Kafka.Partitions,
		ReplicationFactor: cfg.Kafka.ReplicationFactor,
	}
}
