package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// ICEServer mirrors the gateway's transport-configuration entries.
type ICEServer struct {
	URLs       []string `mapstructure:"urls" json:"urls" validate:"required,min=1"`
	Username   string   `mapstructure:"username" json:"username,omitempty"`
	Credential string   `mapstructure:"credential" json:"credential,omitempty"`
}

// Relay configures the signaling relay server.
type Relay struct {
	Mode       string        `mapstructure:"mode" validate:"oneof=debug release"`
	Port       int           `mapstructure:"port" validate:"gte=1,lte=65535"`
	ReadLimit  int64         `mapstructure:"read_limit" validate:"gt=0"`
	PingPeriod time.Duration `mapstructure:"ping_period" validate:"gt=0"`
	SendBuffer int           `mapstructure:"send_buffer" validate:"gt=0"`
	ICEServers []ICEServer   `mapstructure:"ice_servers"`
}

// Client configures the call client core.
type Client struct {
	GatewayURL     string        `mapstructure:"gateway_url" validate:"required,url"`
	RelayWSURL     string        `mapstructure:"relay_ws_url" validate:"required"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"gt=0"`
	JoinTimeout    time.Duration `mapstructure:"join_timeout" validate:"gt=0"`

	ReconnectBase time.Duration `mapstructure:"reconnect_base" validate:"gt=0"`
	ReconnectMax  time.Duration `mapstructure:"reconnect_max" validate:"gt=0"`
	// ReconnectBudget bounds reconnection attempts before the channel
	// reports itself lost.
	ReconnectBudget int `mapstructure:"reconnect_budget" validate:"gte=1"`
}

var validate = validator.New()

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	v.SetConfigFile(fmt.Sprintf("config/config.%s.yaml", env))
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	return v
}

func LoadRelay() (*Relay, error) {
	v := newViper()
	v.SetDefault("relay.mode", "release")
	v.SetDefault("relay.port", 8080)
	v.SetDefault("relay.read_limit", 32768)
	v.SetDefault("relay.ping_period", "54s")
	v.SetDefault("relay.send_buffer", 32)

	_ = v.ReadInConfig()

	var cfg Relay
	if err := v.UnmarshalKey("relay", &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse relay config: %w", err)
	}
	if len(cfg.ICEServers) == 0 {
		cfg.ICEServers = []ICEServer{{URLs: []string{"stun:stun.l.google.com:19302"}}}
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid relay config: %w", err)
	}
	return &cfg, nil
}

func LoadClient() (*Client, error) {
	v := newViper()
	v.SetDefault("client.gateway_url", "http://localhost:8080")
	v.SetDefault("client.relay_ws_url", "ws://localhost:8080/rtc/ws")
	v.SetDefault("client.request_timeout", "10s")
	v.SetDefault("client.join_timeout", "15s")
	v.SetDefault("client.reconnect_base", "1s")
	v.SetDefault("client.reconnect_max", "30s")
	v.SetDefault("client.reconnect_budget", 5)

	_ = v.ReadInConfig()

	var cfg Client
	if err := v.UnmarshalKey("client", &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse client config: %w", err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid client config: %w", err)
	}
	return &cfg, nil
}
