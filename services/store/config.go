package main

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

const (
	driverPostgres = "postgres"
	driverMemory   = "memory"
)

// Config é a configuração do serviço, lida do ambiente
type Config struct {
	Port         string `envconfig:"PORT" default:"8080"`
	ServiceName  string `envconfig:"SERVICE_NAME" default:"store-service"`
	OTLPEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT" default:"localhost:4318"`
	OTELEnabled  bool   `envconfig:"OTEL_ENABLED" default:"true"`
	LogLevel     string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"LOG_FORMAT" default:"json"`

	StoreDriver string         `envconfig:"STORE_DRIVER" default:"postgres"`
	AutoMigrate bool           `envconfig:"AUTO_MIGRATE" default:"false"`
	Database    DatabaseConfig `envconfig:"DATABASE"`

	JWTSecret     string `envconfig:"JWT_SECRET" required:"true"`
	StoreCurrency string `envconfig:"STORE_CURRENCY" default:"CLP"`

	PayPal           PayPalConfig      `envconfig:"PAYPAL"`
	MercadoPago      MercadoPagoConfig `envconfig:"MERCADOPAGO"`
	ProcessorTimeout time.Duration     `envconfig:"PAYMENT_PROCESSOR_TIMEOUT" default:"15s"`
	IntentTTL        time.Duration     `envconfig:"PAYMENT_INTENT_TTL" default:"30m"`
	SweepSchedule    string            `envconfig:"PAYMENT_SWEEP_SCHEDULE" default:"@every 5m"`

	SMTP                SMTPConfig    `envconfig:"SMTP"`
	KafkaBrokers        string        `envconfig:"KAFKA_BROKERS"`
	KafkaTopic          string        `envconfig:"KAFKA_TOPIC" default:"sale.confirmed"`
	NotificationWorkers int           `envconfig:"NOTIFICATION_WORKERS" default:"4"`
	NotificationTimeout time.Duration `envconfig:"NOTIFICATION_TIMEOUT" default:"10s"`
}

type DatabaseConfig struct {
	User     string `envconfig:"USER" default:"root"`
	Password string `envconfig:"PASSWORD" default:"pass"`
	Host     string `envconfig:"HOST" default:"localhost"`
	Port     string `envconfig:"PORT" default:"5432"`
	Name     string `envconfig:"NAME" default:"store_db"`
}

// DSN monta a URL de conexão no formato aceito por pgx e lib/pq
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		d.User,
		d.Password,
		d.Host,
		d.Port,
		d.Name,
	)
}

type PayPalConfig struct {
	BaseURL   string `envconfig:"BASE_URL" default:"https://api-m.sandbox.paypal.com"`
	ClientID  string `envconfig:"CLIENT_ID"`
	Secret    string `envconfig:"SECRET"`
	ReturnURL string `envconfig:"RETURN_URL"`
	CancelURL string `envconfig:"CANCEL_URL"`
	// Pesos chilenos por dólar; a conversão nunca é buscada online
	CLPPerUSD decimal.Decimal `envconfig:"CLP_PER_USD" default:"950"`
}

func (p PayPalConfig) Enabled() bool {
	return p.ClientID != "" && p.Secret != ""
}

type MercadoPagoConfig struct {
	BaseURL         string `envconfig:"BASE_URL" default:"https://api.mercadopago.com"`
	AccessToken     string `envconfig:"ACCESS_TOKEN"`
	SuccessURL      string `envconfig:"SUCCESS_URL"`
	FailureURL      string `envconfig:"FAILURE_URL"`
	PendingURL      string `envconfig:"PENDING_URL"`
	NotificationURL string `envconfig:"NOTIFICATION_URL"`
}

func (m MercadoPagoConfig) Enabled() bool {
	return m.AccessToken != ""
}

type SMTPConfig struct {
	Host     string `envconfig:"HOST"`
	Port     int    `envconfig:"PORT" default:"587"`
	Username string `envconfig:"USERNAME"`
	Password string `envconfig:"PASSWORD"`
	From     string `envconfig:"FROM" default:"no-reply@supplements.store"`
}

func (s SMTPConfig) Enabled() bool {
	return s.Host != ""
}

// loadConfig lê e valida a configuração
func loadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.StoreDriver != driverPostgres && c.StoreDriver != driverMemory {
		return fmt.Errorf("invalid STORE_DRIVER %q: use %q or %q", c.StoreDriver, driverPostgres, driverMemory)
	}
	if c.PayPal.Enabled() && !c.PayPal.CLPPerUSD.IsPositive() {
		return fmt.Errorf("PAYPAL_CLP_PER_USD must be positive")
	}
	if c.IntentTTL <= 0 {
		return fmt.Errorf("PAYMENT_INTENT_TTL must be positive")
	}
	return nil
}
