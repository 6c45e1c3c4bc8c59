package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	AES      AESConfig      `mapstructure:"aes"`
	Log      LogConfig      `mapstructure:"log"`
	Gateway  GatewayConfig  `mapstructure:"gateway"`
	Token    TokenConfig    `mapstructure:"token"`
	Chain    ChainConfig    `mapstructure:"chain"`
	Audit    AuditConfig    `mapstructure:"audit"`
	Auth     AuthConfig     `mapstructure:"auth"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"` // debug, release, test
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
	RateLimit    int64         `mapstructure:"rate_limit"` // requests per window per client
	RateWindow   time.Duration `mapstructure:"rate_window"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

type AESConfig struct {
	Key string `mapstructure:"key"` // 32-byte hex-encoded key for AES-256
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// GatewayConfig carries the initial merchant parameters. Addresses are 0x-prefixed hex.
type GatewayConfig struct {
	Owner     string `mapstructure:"owner"`
	Recipient string `mapstructure:"recipient"`
	Signer    string `mapstructure:"signer"`
	// Spender is the gateway's identity in the built-in ledger. The EVM
	// backend uses the hot key address instead.
	Spender string `mapstructure:"spender"`
}

const (
	BackendLedger = "ledger"
	BackendEVM    = "evm"
)

type TokenConfig struct {
	Backend string `mapstructure:"backend"` // ledger, evm
}

type ChainConfig struct {
	RPCURL         string        `mapstructure:"rpc_url"`
	ChainID        int64         `mapstructure:"chain_id"`
	KeyEnc         string        `mapstructure:"key_enc"` // AES-GCM encrypted hex private key
	ReceiptTimeout time.Duration `mapstructure:"receipt_timeout"`
	GasLimit       uint64        `mapstructure:"gas_limit"`
}

type AuditConfig struct {
	Stream        string `mapstructure:"stream"`
	Retain        int    `mapstructure:"retain"`
	WebhookURL    string `mapstructure:"webhook_url"`
	WebhookSecret string `mapstructure:"webhook_secret"`
	QueueSize     int    `mapstructure:"queue_size"`
}

type AuthConfig struct {
	MaxSkew  time.Duration `mapstructure:"max_skew"`
	NonceTTL time.Duration `mapstructure:"nonce_ttl"`
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: OPG_ (Order Pay Gateway).
// Nested keys use underscore: OPG_GATEWAY_SIGNER, OPG_CHAIN_RPC_URL, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("server.rate_limit", 100)
	v.SetDefault("server.rate_window", "1m")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "order_pay_gateway")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "24h")
	v.SetDefault("jwt.issuer", "order-pay-gateway")
	v.SetDefault("aes.key", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("gateway.owner", "")
	v.SetDefault("gateway.recipient", "")
	v.SetDefault("gateway.signer", "")
	v.SetDefault("gateway.spender", "0x0000000000000000000000000000000000006a7e")
	v.SetDefault("token.backend", BackendLedger)
	v.SetDefault("chain.rpc_url", "")
	v.SetDefault("chain.chain_id", 1)
	v.SetDefault("chain.key_enc", "")
	v.SetDefault("chain.receipt_timeout", "2m")
	v.SetDefault("chain.gas_limit", 100000)
	v.SetDefault("audit.stream", "gateway:audit")
	v.SetDefault("audit.retain", 10000)
	v.SetDefault("audit.webhook_url", "")
	v.SetDefault("audit.webhook_secret", "")
	v.SetDefault("audit.queue_size", 1024)
	v.SetDefault("auth.max_skew", "5m")
	v.SetDefault("auth.nonce_ttl", "10m")

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: OPG_GATEWAY_SIGNER -> gateway.signer
	v.SetEnvPrefix("OPG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required, env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Token.Backend {
	case BackendLedger:
	case BackendEVM:
		if c.Chain.RPCURL == "" {
			return fmt.Errorf("token.backend %q requires chain.rpc_url", c.Token.Backend)
		}
	default:
		return fmt.Errorf("unknown token.backend %q", c.Token.Backend)
	}
	return nil
}
