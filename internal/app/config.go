package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete till configuration, loadable from environment
// variables (TILL_ prefix), flags, or YAML config files.
type Config struct {
	Addr      string `default:"0.0.0.0:8080" usage:"Till API listen address"`
	APIKey    string `env:"API_KEY" yaml:"api_key" flag:"api-key" usage:"Key the UI must send in X-API-Key; empty disables the check"`
	ERP       ERPConfig
	Documents DocumentsConfig
	Checkout  CheckoutConfig
	Server    ServerConfig
	CORS      CORSConfig
	Graceful  GracefulConfig
}

// ERPConfig locates and authenticates against the back-office API.
type ERPConfig struct {
	URL      string        `default:"http://localhost:8000/api" usage:"Back-office API base URL"`
	Token    string        `usage:"Bearer token; obtained from the credentials when empty"`
	Username string        `usage:"Back-office user for token login"`
	Password string        `usage:"Back-office password for token login"`
	Timeout  time.Duration `default:"30s" usage:"HTTP client timeout"`
}

// DocumentsConfig controls where invoice documents are saved.
type DocumentsConfig struct {
	Dir string `default:"invoices" usage:"Directory receiving invoice PDFs"`
}

// CheckoutConfig tunes the checkout protocol.
type CheckoutConfig struct {
	StepTimeout time.Duration `default:"30s" env:"STEP_TIMEOUT" yaml:"step_timeout" flag:"step-timeout" usage:"Timeout of each back-office step; 0 disables it"`
}

// ServerConfig holds HTTP server timeouts.
type ServerConfig struct {
	ReadTimeout  time.Duration `default:"10s" env:"READ_TIMEOUT" yaml:"read_timeout" flag:"read-timeout"`
	WriteTimeout time.Duration `default:"2m" env:"WRITE_TIMEOUT" yaml:"write_timeout" flag:"write-timeout" usage:"Must cover a whole checkout"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" env:"ALLOW_CREDENTIALS" yaml:"allow_credentials" flag:"cors-credentials" usage:"Allow credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"1s"  env:"READINESS_DELAY" yaml:"readiness_delay" flag:"readiness-delay" usage:"Delay after readiness=false before shutdown"`
	ShutdownTimeout time.Duration `default:"2m" env:"SHUTDOWN_TIMEOUT" yaml:"shutdown_timeout" flag:"shutdown-timeout" usage:"Maximum shutdown duration, lets an in-flight checkout finish"`
}

// LoadConfig loads configuration from environment variables, flags and YAML
// config files.
func LoadConfig() (*Config, error) {
	return loadConfig(aconfig.Config{
		EnvPrefix: "TILL",
		Files:     []string{"config.yaml", "/etc/till/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
}

func loadConfig(acfg aconfig.Config) (*Config, error) {
	var cfg Config
	if err := aconfig.LoaderFor(&cfg, acfg).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.ERP.URL == "":
		return errors.New("back-office URL is required: set TILL_ERP_URL")
	case c.ERP.Password != "" && c.ERP.Username == "":
		return errors.New("TILL_ERP_PASSWORD is set without TILL_ERP_USERNAME")
	case c.Documents.Dir == "":
		return errors.New("documents directory is required: set TILL_DOCUMENTS_DIR")
	case c.Checkout.StepTimeout < 0:
		return errors.New("checkout step timeout must not be negative")
	}
	return nil
}

// applyPlatformDefaults honours the conventional PORT variable.
func (c *Config) applyPlatformDefaults() {
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
