package config

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Configuration is the full process configuration, loaded from config.yaml
// and/or XEROSYNC_* environment variables.
type Configuration struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	AWS       AWSConfig       `mapstructure:"aws"`
	Xero      XeroConfig      `mapstructure:"xero" validate:"required"`
	Reconcile ReconcileConfig `mapstructure:"reconcile"`
}

type ServerConfig struct {
	Address string `mapstructure:"address" validate:"required"`
	// SettingsURL is where the OAuth callback redirects after a successful
	// authorization (the admin settings page).
	SettingsURL string `mapstructure:"settings_url"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level" validate:"required"`
}

type AWSConfig struct {
	Region           string `mapstructure:"region"`
	OrdersTable      string `mapstructure:"orders_table" validate:"required"`
	CredentialsTable string `mapstructure:"credentials_table" validate:"required"`
	InvoiceIDIndex   string `mapstructure:"invoice_id_index" validate:"required"`
	// TriggerQueueURL is the SQS queue the scheduler and the async manual
	// trigger publish reconcile messages to. Optional for sync-only setups.
	TriggerQueueURL string `mapstructure:"trigger_queue_url"`
}

type XeroConfig struct {
	ClientID     string `mapstructure:"client_id" validate:"required"`
	ClientSecret string `mapstructure:"client_secret" validate:"required"`
	RedirectURI  string `mapstructure:"redirect_uri" validate:"required,url"`
	// SigningKey is the webhook signing key from the Xero developer portal.
	// Webhook verification fails closed when it is empty.
	SigningKey string `mapstructure:"signing_key"`
}

type ReconcileConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	// LookbackDays bounds the order scan window.
	LookbackDays int `mapstructure:"lookback_days" validate:"min=1"`
}

// New loads configuration from file and environment.
func New() (*Configuration, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/xero-reconciler")

	v.SetEnvPrefix("XEROSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; everything can come from env.
		if !errors.HasType(err, viper.ConfigFileNotFoundError{}) {
			return nil, errors.Wrap(err, "read config file")
		}
	}

	var cfg Configuration
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "validate config")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("logging.level", "info")
	v.SetDefault("aws.region", "us-east-1")
	v.SetDefault("aws.orders_table", "orders")
	v.SetDefault("aws.credentials_table", "xero-credentials")
	v.SetDefault("aws.invoice_id_index", "xero_invoice_id-index")
	v.SetDefault("reconcile.interval", 30*time.Minute)
	v.SetDefault("reconcile.lookback_days", 90)
}

func (c *Configuration) Validate() error {
	return validator.New().Struct(c)
}
