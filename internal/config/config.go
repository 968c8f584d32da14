package config

import (
	"time"

	"github.com/weiawesome/seedling-live/internal/receipt"
	pkgconfig "github.com/weiawesome/seedling-live/pkg/config"
	"github.com/weiawesome/seedling-live/pkg/database"
	pkglog "github.com/weiawesome/seedling-live/pkg/log"
	"github.com/weiawesome/seedling-live/pkg/pubsub"
	"github.com/weiawesome/seedling-live/pkg/storage"
)

type Config struct {
	Server    ServerConfig
	WebSocket WebSocketConfig
	Auth      AuthConfig
	Cart      CartConfig
	Database  database.Config
	PubSub    pubsub.Config
	Live      LiveConfig
	Receipt   ReceiptConfig
	Log       pkglog.Config
}

type ServerConfig struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type WebSocketConfig struct {
	ReadBufferSize  int           `mapstructure:"read_buffer_size"`
	WriteBufferSize int           `mapstructure:"write_buffer_size"`
	SendBuffer      int           `mapstructure:"send_buffer"`
	PingInterval    time.Duration `mapstructure:"ping_interval"`
	PongWait        time.Duration `mapstructure:"pong_wait"`
	WriteWait       time.Duration `mapstructure:"write_wait"`
	MaxMessageSize  int64         `mapstructure:"max_message_size"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	Issuer    string        `mapstructure:"issuer"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// CartConfig selects where carts are read from: "http" (storefront API) or
// "database" (direct GORM access).
type CartConfig struct {
	Driver       string        `mapstructure:"driver"`
	BaseURL      string        `mapstructure:"base_url"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
}

// LiveConfig is the room this storefront auto-joins on start. An empty
// RoomID leaves joining to the API.
type LiveConfig struct {
	RoomID        string `mapstructure:"room_id"`
	ParticipantID string `mapstructure:"participant_id"`
	DisplayName   string `mapstructure:"display_name"`
	Mode          string `mapstructure:"mode"`
}

type ReceiptConfig struct {
	Brand     receipt.Brand  `mapstructure:"brand"`
	Storage   storage.Config `mapstructure:"storage"`
	URLExpiry time.Duration  `mapstructure:"url_expiry"`
}

func Load() (*Config, error) {
	v, err := pkgconfig.Load("./config", "config")
	if err != nil {
		return nil, err
	}

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("websocket.read_buffer_size", 1024)
	v.SetDefault("websocket.write_buffer_size", 1024)
	v.SetDefault("websocket.send_buffer", 256)
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.max_message_size", 65536)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "seedling-market")
	v.SetDefault("auth.token_ttl", "24h")
	v.SetDefault("cart.driver", "http")
	v.SetDefault("cart.base_url", "http://localhost:8080")
	v.SetDefault("cart.fetch_timeout", "5s")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.file_path", "./data/seedling.db")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("pubsub.driver", "redis")
	v.SetDefault("pubsub.redis.address", "localhost:6379")
	v.SetDefault("pubsub.redis.password", "")
	v.SetDefault("pubsub.redis.db", 0)
	v.SetDefault("pubsub.redis.pool_size", 10)
	v.SetDefault("pubsub.kafka.brokers", "localhost:9092")
	v.SetDefault("pubsub.kafka.group_id", "seedling-live")
	v.SetDefault("pubsub.kafka.partitions", 4)
	v.SetDefault("live.room_id", "")
	v.SetDefault("live.mode", "VIEWER")
	v.SetDefault("receipt.brand.name", "SEEDLING MARKET")
	v.SetDefault("receipt.brand.hotline", "(+84) 999-439611")
	v.SetDefault("receipt.brand.email", "seedlingmarket@company.com")
	v.SetDefault("receipt.brand.title", "INVOICE")
	v.SetDefault("receipt.brand.font", "")
	v.SetDefault("receipt.storage.driver", "")
	v.SetDefault("receipt.storage.local.base_path", "./data/receipts")
	v.SetDefault("receipt.url_expiry", "1h")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.service_name", "seedling-live")

	v.BindEnv("server.port", "PORT")
	v.BindEnv("auth.jwt_secret", "JWT_SECRET")
	v.BindEnv("cart.driver", "CART_DRIVER")
	v.BindEnv("cart.base_url", "CART_BASE_URL")
	v.BindEnv("database.driver", "DB_DRIVER")
	v.BindEnv("database.host", "DB_HOST")
	v.BindEnv("database.port", "DB_PORT")
	v.BindEnv("database.user", "DB_USER")
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("database.dbname", "DB_NAME")
	v.BindEnv("receipt.brand.font", "RECEIPT_FONT")
	v.BindEnv("pubsub.driver", "PUBSUB_DRIVER")
	v.BindEnv("pubsub.redis.address", "REDIS_ADDRESS")
	v.BindEnv("pubsub.redis.password", "REDIS_PASSWORD")
	v.BindEnv("pubsub.kafka.brokers", "KAFKA_BROKERS")
	v.BindEnv("pubsub.kafka.group_id", "KAFKA_PUBSUB_GROUP_ID")
	v.BindEnv("live.room_id", "LIVE_ROOM_ID")
	v.BindEnv("live.participant_id", "LIVE_PARTICIPANT_ID")
	v.BindEnv("live.display_name", "LIVE_DISPLAY_NAME")
	v.BindEnv("receipt.storage.driver", "RECEIPT_STORAGE_DRIVER")
	v.BindEnv("receipt.storage.s3.endpoint", "S3_ENDPOINT")
	v.BindEnv("receipt.storage.s3.region", "S3_REGION")
	v.BindEnv("receipt.storage.s3.bucket", "S3_BUCKET")
	v.BindEnv("receipt.storage.s3.access_key_id", "S3_ACCESS_KEY_ID")
	v.BindEnv("receipt.storage.s3.secret_access_key", "S3_SECRET_ACCESS_KEY")
	v.BindEnv("log.level", "LOG_LEVEL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.Server.ShutdownTimeout = pkgconfig.Duration(v, "server.shutdown_timeout", 30*time.Second)
	cfg.WebSocket.PingInterval = pkgconfig.Duration(v, "websocket.ping_interval", 30*time.Second)
	cfg.WebSocket.PongWait = pkgconfig.Duration(v, "websocket.pong_wait", 60*time.Second)
	cfg.WebSocket.WriteWait = pkgconfig.Duration(v, "websocket.write_wait", 10*time.Second)
	cfg.Auth.TokenTTL = pkgconfig.Duration(v, "auth.token_ttl", 24*time.Hour)
	cfg.Cart.FetchTimeout = pkgconfig.Duration(v, "cart.fetch_timeout", 5*time.Second)
	cfg.Database.ConnMaxLifetime = pkgconfig.Duration(v, "database.conn_max_lifetime", time.Hour)
	cfg.PubSub.Redis.ReadTimeout = pkgconfig.Duration(v, "pubsub.redis.read_timeout", 3*time.Second)
	cfg.PubSub.Redis.WriteTimeout = pkgconfig.Duration(v, "pubsub.redis.write_timeout", 3*time.Second)
	cfg.Receipt.URLExpiry = pkgconfig.Duration(v, "receipt.url_expiry", time.Hour)

	return &cfg, nil
}
