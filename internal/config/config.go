// Package config loads service configuration from a YAML file and the
// environment. Environment variables use the SERVIFIELD_ prefix with
// underscores for nesting, e.g. SERVIFIELD_DATABASE_HOST.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/servifield/servifield/internal/database"
)

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Storage   StorageConfig
	Auth      AuthConfig
	Health    HealthConfig
	Providers ProvidersConfig
	Notify    NotifyConfig
	Telemetry TelemetryConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port string
	Env  string
}

// DatabaseConfig holds PostgreSQL settings.
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Pool converts to the database package's connection config.
func (c DatabaseConfig) Pool() database.Config {
	return database.Config{
		Host:            c.Host,
		Port:            c.Port,
		User:            c.User,
		Password:        c.Password,
		Database:        c.Name,
		SSLMode:         c.SSLMode,
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
	}
}

// RedisConfig holds cache settings.
type RedisConfig struct {
	URL string
}

// StorageConfig holds object storage settings.
type StorageConfig struct {
	Region       string
	Bucket       string
	Endpoint     string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
}

// AuthConfig holds operator token settings.
type AuthConfig struct {
	JWTSigningKey string
	Issuer        string
	Audience      string
}

// HealthConfig holds degradation engine settings. DegradedThreshold and
// UnavailableThreshold are success-rate percentages kept for operators who
// tune probes; the classifier itself works from probe-reported status.
type HealthConfig struct {
	PollInterval         time.Duration
	ProbeTimeout         time.Duration
	AutoIncidents        bool
	AutoResolveDelay     time.Duration
	DegradedThreshold    float64
	UnavailableThreshold float64
}

// MercadoPagoConfig holds payment provider settings.
type MercadoPagoConfig struct {
	AccessToken string
	BaseURL     string
}

// WhatsAppConfig holds messaging provider settings.
type WhatsAppConfig struct {
	AccessToken   string
	PhoneNumberID string
	BaseURL       string
}

// OpenAIConfig holds assistant provider settings.
type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// AFIPConfig holds tax authority settings.
type AFIPConfig struct {
	BaseURL string
}

// ProvidersConfig groups external provider settings.
type ProvidersConfig struct {
	MercadoPago MercadoPagoConfig
	WhatsApp    WhatsAppConfig
	OpenAI      OpenAIConfig
	AFIP        AFIPConfig
}

// NotifyConfig holds Pub/Sub settings for incident event publishing.
type NotifyConfig struct {
	ProjectID    string
	Topic        string
	Subscription string
}

// Enabled reports whether incident publishing is configured.
func (c NotifyConfig) Enabled() bool {
	return c.ProjectID != "" && c.Topic != ""
}

// TelemetryConfig holds OpenTelemetry settings.
type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	SampleRatio  float64
}

// Load reads configuration from config.yaml and the environment.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvPrefix("SERVIFIELD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers every key so environment overrides apply even
// without a config file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.env", "development")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "servifield")
	v.SetDefault("database.password", "localdev")
	v.SetDefault("database.name", "servifield")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.maxopenconns", 10)
	v.SetDefault("database.maxidleconns", 5)
	v.SetDefault("database.connmaxlifetime", "5m")

	v.SetDefault("redis.url", "redis://localhost:6379/0")

	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.bucket", "servifield-media")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.accesskey", "")
	v.SetDefault("storage.secretkey", "")
	v.SetDefault("storage.usepathstyle", false)

	v.SetDefault("auth.jwtsigningkey", "")
	v.SetDefault("auth.issuer", "https://api.servifield.com.ar")
	v.SetDefault("auth.audience", "servifield-api")

	v.SetDefault("health.pollinterval", "30s")
	v.SetDefault("health.probetimeout", "5s")
	v.SetDefault("health.autoincidents", true)
	v.SetDefault("health.autoresolvedelay", "5m")
	v.SetDefault("health.degradedthreshold", 90)
	v.SetDefault("health.unavailablethreshold", 50)

	v.SetDefault("providers.mercadopago.accesstoken", "")
	v.SetDefault("providers.mercadopago.baseurl", "")
	v.SetDefault("providers.whatsapp.accesstoken", "")
	v.SetDefault("providers.whatsapp.phonenumberid", "")
	v.SetDefault("providers.whatsapp.baseurl", "")
	v.SetDefault("providers.openai.apikey", "")
	v.SetDefault("providers.openai.model", "")
	v.SetDefault("providers.openai.baseurl", "")
	v.SetDefault("providers.afip.baseurl", "")

	v.SetDefault("notify.projectid", "")
	v.SetDefault("notify.topic", "")
	v.SetDefault("notify.subscription", "")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.otlpendpoint", "localhost:4317")
	v.SetDefault("telemetry.sampleratio", 1.0)
}
