package config

import "time"

// AppConfig 网关进程配置，全部来自环境变量（可选 .env）
type AppConfig struct {
	NodeID   int64  `env:"NODE_ID" envDefault:"1"` // 雪花节点号，也用作 presence 的值
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	Server  ServerConfig
	Gateway GatewayConfig
	Queue   QueueConfig
	Session SessionConfig
	NATS    NATSConfig
	Kafka   KafkaConfig
	Client  ClientConfig
}

type ServerConfig struct {
	Addr            string        `env:"HTTP_ADDR" envDefault:":8080"`
	GRPCAddr        string        `env:"GRPC_ADDR"` // 为空不启动 gRPC health
	AdminToken      string        `env:"ADMIN_TOKEN"`
	AllowedOrigins  []string      `env:"ALLOWED_ORIGINS" envSeparator:","`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

type GatewayConfig struct {
	WSPath         string        `env:"WS_PATH" envDefault:"/ws"`
	WriteWait      time.Duration `env:"WS_WRITE_WAIT" envDefault:"10s"`
	PongWait       time.Duration `env:"WS_PONG_WAIT" envDefault:"75s"`
	PingInterval   time.Duration `env:"WS_PING_INTERVAL" envDefault:"50s"`
	MaxFrameBytes  int64         `env:"WS_MAX_FRAME_BYTES" envDefault:"1048576"`
	FrameRate      float64       `env:"WS_FRAME_RATE" envDefault:"20"`
	FrameBurst     int           `env:"WS_FRAME_BURST" envDefault:"40"`
	HandshakeRate  float64       `env:"WS_HANDSHAKE_RATE" envDefault:"0"` // 每 IP 每秒握手数，0 关闭
	HandshakeBurst int           `env:"WS_HANDSHAKE_BURST" envDefault:"10"`
	ResolveTimeout time.Duration `env:"SESSION_RESOLVE_TIMEOUT" envDefault:"3s"`
	CookieName     string        `env:"SESSION_COOKIE" envDefault:"sid"`
	HeaderToken    string        `env:"SESSION_HEADER" envDefault:"Authorization-Token"`
	QueryParam     string        `env:"SESSION_QUERY_PARAM" envDefault:"session"`
}

type QueueConfig struct {
	MaxPerIdentity int `env:"OFFLINE_QUEUE_MAX" envDefault:"1000"` // 0 不限
}

type SessionConfig struct {
	PostgresDSN string        `env:"DATABASE_URL"`
	RedisURL    string        `env:"REDIS_URL"`
	MongoURI    string        `env:"MONGO_URI"`
	MongoDB     string        `env:"MONGO_DATABASE" envDefault:"ppnotify"`
	MongoColl   string        `env:"MONGO_SESSION_COLLECTION" envDefault:"sessions"`
	CacheTTL    time.Duration `env:"SESSION_CACHE_TTL" envDefault:"5m"`
	PresenceTTL time.Duration `env:"PRESENCE_TTL" envDefault:"10m"`
	JWTSecret   string        `env:"JWT_SECRET"`
	// 仅用于本地调试: "sid=alice,sid2=bob"
	Static map[string]string `env:"SESSION_STATIC" envSeparator:"," envKeyValSeparator:"="`
}

type NATSConfig struct {
	URLs     []string `env:"NATS_URL" envSeparator:","`
	Subject  string   `env:"NATS_SUBJECT" envDefault:"notify.deliver"`
	Queue    string   `env:"NATS_QUEUE" envDefault:"ppnotify"`
	User     string   `env:"NATS_USER"`
	Password string   `env:"NATS_PASSWORD"`
}

// KafkaConfig 第二个投递入口，与 NATS 使用相同的信封格式
type KafkaConfig struct {
	Brokers           []string `env:"KAFKA_BROKERS" envSeparator:","`
	Topic             string   `env:"KAFKA_TOPIC" envDefault:"notify.deliver"`
	GroupID           string   `env:"KAFKA_GROUP" envDefault:"ppnotify"`
	Version           string   `env:"KAFKA_VERSION" envDefault:"2.1.0"`
	InitialOffset     string   `env:"KAFKA_OFFSET" envDefault:"newest"`
	Compression       string   `env:"KAFKA_COMPRESSION" envDefault:"none"`
	AutoCreateTopic   bool     `env:"KAFKA_AUTO_CREATE"`
	Partitions        int32    `env:"KAFKA_PARTITIONS" envDefault:"8"`
	ReplicationFactor int16    `env:"KAFKA_REPLICATION" envDefault:"1"`
}

// ClientConfig 供 listen 命令使用
type ClientConfig struct {
	URL               string        `env:"CLIENT_URL" envDefault:"ws://127.0.0.1:8080/ws"`
	Session           string        `env:"CLIENT_SESSION"`
	ConnectTimeout    time.Duration `env:"CLIENT_CONNECT_TIMEOUT" envDefault:"10s"`
	HeartbeatInterval time.Duration `env:"CLIENT_HEARTBEAT" envDefault:"30s"`
	BackoffBase       time.Duration `env:"CLIENT_BACKOFF_BASE" envDefault:"1s"`
	BackoffMax        time.Duration `env:"CLIENT_BACKOFF_MAX" envDefault:"10s"`
	BackoffMultiplier float64       `env:"CLIENT_BACKOFF_MULTIPLIER" envDefault:"2"`
	MaxAttempts       int           `env:"CLIENT_MAX_ATTEMPTS" envDefault:"5"`
	ResumeDelay       time.Duration `env:"CLIENT_RESUME_DELAY" envDefault:"1s"`
	ProbeInterval     time.Duration `env:"CLIENT_PROBE_INTERVAL" envDefault:"5s"`
}
