package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the configuration for the application.
type Config struct {
	Environment   string `mapstructure:"environment"`
	DevModeBypass bool   `mapstructure:"dev_mode_bypass"`
	Server        struct {
		Addr         string        `mapstructure:"addr"`
		ReadTimeout  time.Duration `mapstructure:"read_timeout"`
		WriteTimeout time.Duration `mapstructure:"write_timeout"`
	} `mapstructure:"server"`
	DB struct {
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		Name     string `mapstructure:"name"`
		SSLMode  string `mapstructure:"sslmode"`
	} `mapstructure:"db"`
	Redis struct {
		Enabled     bool          `mapstructure:"enabled"`
		Addr        string        `mapstructure:"addr"`
		Password    string        `mapstructure:"password"`
		DB          int           `mapstructure:"db"`
		TemplateTTL time.Duration `mapstructure:"template_ttl"`
	} `mapstructure:"redis"`
	Kafka struct {
		Enabled     bool          `mapstructure:"enabled"`
		Brokers     []string      `mapstructure:"brokers"`
		AuditTopic  string        `mapstructure:"audit_topic"`
		EmitTimeout time.Duration `mapstructure:"emit_timeout"`
	} `mapstructure:"kafka"`
	CaseService struct {
		URL          string        `mapstructure:"url"`
		Timeout      time.Duration `mapstructure:"timeout"`
		TokenURL     string        `mapstructure:"token_url"`
		ClientID     string        `mapstructure:"client_id"`
		ClientSecret string        `mapstructure:"client_secret"`
	} `mapstructure:"case_service"`
	Resolver struct {
		Timeout        time.Duration `mapstructure:"timeout"`
		MaxConcurrency int           `mapstructure:"max_concurrency"`
	} `mapstructure:"resolver"`
	Auth struct {
		OktaDomain    string `mapstructure:"okta_domain"`
		ClientID      string `mapstructure:"client_id"`
		DevSigningKey string `mapstructure:"dev_signing_key"`
	} `mapstructure:"auth"`
	TLS struct {
		Enable    bool     `mapstructure:"enable"`
		CertFile  string   `mapstructure:"cert_file"`
		KeyFile   string   `mapstructure:"key_file"`
		Hostnames []string `mapstructure:"hostnames"`
	} `mapstructure:"tls"`
	Logging struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"logging"`
}

// IsDev reports whether the service runs in a development environment.
func (c *Config) IsDev() bool {
	return strings.EqualFold(c.Environment, "dev")
}

// DSN builds a PostgreSQL connection string from the db section.
func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DB.User, c.DB.Password, c.DB.Host, c.DB.Port, c.DB.Name, c.DB.SSLMode)
}

// Validate checks the values that would otherwise fail late at runtime.
func (c *Config) Validate() error {
	var errs []error
	if !c.IsDev() {
		if c.DB.Host == "" {
			errs = append(errs, errors.New("db.host is required outside dev"))
		}
		if c.DB.Name == "" {
			errs = append(errs, errors.New("db.name is required outside dev"))
		}
		if c.DevModeBypass {
			errs = append(errs, errors.New("dev_mode_bypass is only allowed in dev"))
		}
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 {
		errs = append(errs, errors.New("server timeouts must be positive"))
	}
	if c.Resolver.Timeout <= 0 {
		errs = append(errs, errors.New("resolver.timeout must be positive"))
	}
	if c.Resolver.MaxConcurrency <= 0 {
		errs = append(errs, errors.New("resolver.max_concurrency must be positive"))
	}
	if c.CaseService.URL != "" && c.CaseService.Timeout <= 0 {
		errs = append(errs, errors.New("case_service.timeout must be positive"))
	}
	if c.Redis.Enabled && c.Redis.TemplateTTL <= 0 {
		errs = append(errs, errors.New("redis.template_ttl must be positive"))
	}
	if c.TLS.Enable && (c.TLS.CertFile == "" || c.TLS.KeyFile == "") {
		errs = append(errs, errors.New("tls requires cert_file and key_file"))
	}
	if c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.AuditTopic == "") {
		errs = append(errs, errors.New("kafka requires brokers and audit_topic"))
	}
	if c.Kafka.Enabled && c.Kafka.EmitTimeout <= 0 {
		errs = append(errs, errors.New("kafka.emit_timeout must be positive"))
	}
	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "dev")
	v.SetDefault("dev_mode_bypass", false)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("db.host", "")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "casefiling")
	v.SetDefault("db.password", "")
	v.SetDefault("db.name", "")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.template_ttl", 10*time.Minute)
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.audit_topic", "casefiling.audit")
	v.SetDefault("kafka.emit_timeout", 5*time.Second)
	v.SetDefault("case_service.url", "")
	v.SetDefault("case_service.timeout", 5*time.Second)
	v.SetDefault("case_service.token_url", "")
	v.SetDefault("case_service.client_id", "")
	v.SetDefault("case_service.client_secret", "")
	v.SetDefault("resolver.timeout", 10*time.Second)
	v.SetDefault("resolver.max_concurrency", 8)
	v.SetDefault("auth.okta_domain", "")
	v.SetDefault("auth.client_id", "")
	v.SetDefault("auth.dev_signing_key", "")
	v.SetDefault("tls.enable", false)
	v.SetDefault("tls.cert_file", "")
	v.SetDefault("tls.key_file", "")
	v.SetDefault("tls.hostnames", []string{"localhost"})
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// LoadConfig loads the configuration from an optional .env file, a config.yaml
// and the environment. Environment variables use the CASEFILING_ prefix with
// dots replaced by underscores, e.g. CASEFILING_DB_HOST.
func LoadConfig(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("loading env file %s: %w", envFile, err)
		}
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvPrefix("CASEFILING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// normalize OKTA issuer url (strip trailing slash if any)
	config.Auth.OktaDomain = normalizeOktaIssuer(config.Auth.OktaDomain)
	config.CaseService.URL = strings.TrimRight(strings.TrimSpace(config.CaseService.URL), "/")

	return &config, nil
}

// normalizeOktaIssuer removes surrounding whitespace and any trailing slash so
// the value can be pasted straight from the Okta admin console.
func normalizeOktaIssuer(input string) string {
	return strings.TrimRight(strings.TrimSpace(input), "/")
}
