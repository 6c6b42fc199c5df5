package configs

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	App struct {
		Name     string `koanf:"name"`
		HTTPAddr string `koanf:"http_addr"`
		LogLevel string `koanf:"log_level"`
	} `koanf:"app"`

	HTTP struct {
		ReadTimeout  time.Duration `koanf:"read_timeout"`
		WriteTimeout time.Duration `koanf:"write_timeout"`
		IdleTimeout  time.Duration `koanf:"idle_timeout"`
	} `koanf:"http"`

	Logging struct {
		FilePath   string `koanf:"file_path"`
		MaxSizeMB  int    `koanf:"max_size_mb"`
		MaxBackups int    `koanf:"max_backups"`
		MaxAgeDays int    `koanf:"max_age_days"`
	} `koanf:"logging"`

	Store struct {
		Driver    string `koanf:"driver"` // redis | mysql
		KeyPrefix string `koanf:"key_prefix"`
	} `koanf:"store"`

	MySQL struct {
		DSN             string        `koanf:"dsn"`
		MaxOpenConns    int           `koanf:"max_open_conns"`
		MaxIdleConns    int           `koanf:"max_idle_conns"`
		ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	} `koanf:"mysql"`

	Redis struct {
		Addr     string `koanf:"addr"`
		Password string `koanf:"password"`
		DB       int    `koanf:"db"`
	} `koanf:"redis"`

	Idempotency struct {
		TTL time.Duration `koanf:"ttl"`
	} `koanf:"idempotency"`

	Cache struct {
		TTL time.Duration `koanf:"ttl"`
	} `koanf:"cache"`

	Latch struct {
		Driver string        `koanf:"driver"` // memory | redis
		TTL    time.Duration `koanf:"ttl"`
	} `koanf:"latch"`

	Gateway struct {
		Target         string        `koanf:"target"`
		Authority      string        `koanf:"authority"`
		TLS            bool          `koanf:"tls"`
		CACertFile     string        `koanf:"ca_cert_file"`
		DialTimeout    time.Duration `koanf:"dial_timeout"`
		CallTimeout    time.Duration `koanf:"call_timeout"`
		MaxMsgBytes    int           `koanf:"max_msg_bytes"`
		ClientID       string        `koanf:"client_id"`
		ClientSecret   string        `koanf:"client_secret"`
		APIVersion     string        `koanf:"api_version"`
		FrontendOrigin string        `koanf:"frontend_origin"`
		NotifyURL      string        `koanf:"notify_url"`
		Currency       string        `koanf:"currency"`
	} `koanf:"gateway"`

	Checkout struct {
		OrderIDPrefix     string `koanf:"order_id_prefix"`
		PhoneCountryCode  string `koanf:"phone_country_code"`
		RejectIDCollision bool   `koanf:"reject_id_collision"`
	} `koanf:"checkout"`

	Pricing struct {
		DiscountClamp string `koanf:"discount_clamp"` // none | zero | reject
	} `koanf:"pricing"`

	Verification struct {
		MinDisplay time.Duration `koanf:"min_display"`
	} `koanf:"verification"`

	Reconcile struct {
		Mode           string        `koanf:"mode"` // off | fail | verify
		PendingTimeout time.Duration `koanf:"pending_timeout"`
		Interval       time.Duration `koanf:"interval"`
	} `koanf:"reconcile"`

	Rabbit struct {
		Enabled    bool   `koanf:"enabled"`
		URL        string `koanf:"url"`
		Exchange   string `koanf:"exchange"`
		RoutingKey string `koanf:"routing_key"`
		Queue      string `koanf:"queue"`
		Prefetch   int    `koanf:"prefetch"`
	} `koanf:"rabbitmq"`

	Kafka struct {
		Enabled     bool     `koanf:"enabled"`
		Brokers     []string `koanf:"brokers"`
		TopicEvents string   `koanf:"topic_events"`
		GroupID     string   `koanf:"group_id"`
	} `koanf:"kafka"`

	Security struct {
		JWTSecret string `koanf:"jwt_secret"`
		Issuer    string `koanf:"issuer"`
		Audience  string `koanf:"audience"`
	} `koanf:"security"`

	Downloads struct {
		PublicBaseURL string        `koanf:"public_base_url"`
		TTL           time.Duration `koanf:"ttl"`
	} `koanf:"downloads"`

	CryptoConfig struct {
		KeyID     string `koanf:"key_id"`
		AES256B64 string `koanf:"aes256_b64url"`
		RSAPubPEM string `koanf:"rsa_pub_pem"`
		RSAPriPEM string `koanf:"rsa_pri_pem"`
	} `koanf:"crypto"`
}

func Load(pathDir, envName string) (Config, error) {
	k := koanf.New(".")
	// 1) base
	if err := k.Load(file.Provider(fmt.Sprintf("%s/base.yaml", pathDir)), yaml.Parser()); err != nil {
		return Config{}, fmt.Errorf("load base: %w", err)
	}

	// 2) env override (dev/staging/prod). Optional: allow missing for local runs.
	_ = k.Load(file.Provider(fmt.Sprintf("%s/%s.yaml", pathDir, envName)), yaml.Parser())

	// 3) environment variables override (prefix PIXELMART_, nested with __)
	// e.g. PIXELMART_MYSQL__DSN, PIXELMART_GATEWAY__CLIENT_SECRET
	if err := k.Load(env.Provider("PIXELMART_", ".", func(s string) string {
		s = strings.TrimPrefix(s, "PIXELMART_")
		s = strings.ReplaceAll(s, "__", ".")
		return strings.ToLower(s)
	}), nil); err != nil {
		return Config{}, fmt.Errorf("env overlay: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.App.HTTPAddr == "" {
		return fmt.Errorf("app.http_addr required")
	}
	if c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr required")
	}
	switch c.Store.Driver {
	case "redis":
	case "mysql":
		if c.MySQL.DSN == "" {
			return fmt.Errorf("mysql.dsn required when store.driver is mysql")
		}
	default:
		return fmt.Errorf("store.driver must be redis or mysql, got %q", c.Store.Driver)
	}
	switch c.Latch.Driver {
	case "", "memory", "redis":
	default:
		return fmt.Errorf("latch.driver must be memory or redis, got %q", c.Latch.Driver)
	}
	if c.Gateway.Target == "" {
		return fmt.Errorf("gateway.target required")
	}
	if c.Gateway.FrontendOrigin == "" {
		return fmt.Errorf("gateway.frontend_origin required")
	}
	if c.Security.JWTSecret == "" {
		return fmt.Errorf("security.jwt_secret required")
	}
	// jwt skips the audience check when it is empty
	if c.Security.Audience == "" {
		return fmt.Errorf("security.audience required")
	}
	if p := c.Checkout.OrderIDPrefix; p != "" && !isUpperPair(p) {
		return fmt.Errorf("checkout.order_id_prefix must be 2 uppercase letters, got %q", p)
	}
	if c.Rabbit.Enabled && c.Rabbit.URL == "" {
		return fmt.Errorf("rabbitmq.url required when rabbitmq is enabled")
	}
	if c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.TopicEvents == "") {
		return fmt.Errorf("kafka.brokers and kafka.topic_events required when kafka is enabled")
	}
	return nil
}

func isUpperPair(s string) bool {
	return len(s) == 2 && 'A' <= s[0] && s[0] <= 'Z' && 'A' <= s[1] && s[1] <= 'Z'
}
