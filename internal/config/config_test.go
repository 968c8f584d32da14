package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 8090 {
		t.Errorf("server.port = %d", cfg.Server.Port)
	}
	if cfg.WebSocket.PongWait != 60*time.Second || cfg.WebSocket.MaxMessageSize != 65536 {
		t.Errorf("websocket = %+v", cfg.WebSocket)
	}
	if cfg.Cart.Driver != "http" || cfg.Cart.FetchTimeout != 5*time.Second {
		t.Errorf("cart = %+v", cfg.Cart)
	}
	if cfg.Receipt.Brand.Name != "SEEDLING MARKET" {
		t.Errorf("receipt brand = %+v", cfg.Receipt.Brand)
	}
	if cfg.Live.Mode != "VIEWER" {
		t.Errorf("live.mode = %q", cfg.Live.Mode)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("PUBSUB_DRIVER", "kafka")
	t.Setenv("LIVE_ROOM_ID", "room-7")
	t.Setenv("CART_FETCH_TIMEOUT", "750ms")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("server.port = %d", cfg.Server.Port)
	}
	if cfg.Auth.JWTSecret != "s3cret" {
		t.Errorf("auth.jwt_secret = %q", cfg.Auth.JWTSecret)
	}
	if cfg.PubSub.Driver != "kafka" {
		t.Errorf("pubsub.driver = %q", cfg.PubSub.Driver)
	}
	if cfg.Live.RoomID != "room-7" {
		t.Errorf("live.room_id = %q", cfg.Live.RoomID)
	}
	if cfg.Cart.FetchTimeout != 750*time.Millisecond {
		t.Errorf("cart.fetch_timeout = %v", cfg.Cart.FetchTimeout)
	}
}
