// Package config loads the settings shared by the ptb command and the
// dev ledger server.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/blockberries/ptb/types"
)

// EnvPrefix prefixes every environment override, e.g. PTB_LEDGER_ADDRESS.
const EnvPrefix = "PTB"

type Config struct {
	Ledger   Ledger   `mapstructure:"ledger"`
	Server   Server   `mapstructure:"server"`
	Session  Session  `mapstructure:"session"`
	Submit   Submit   `mapstructure:"submit"`
	Keystore Keystore `mapstructure:"keystore"`
	Log      Log      `mapstructure:"log"`
}

// Ledger is the node the client commands talk to.
type Ledger struct {
	Address     string        `mapstructure:"address" validate:"required,hostname_port"`
	DialTimeout time.Duration `mapstructure:"dial-timeout" validate:"gt=0"`
}

// Server configures `ptb serve`.
type Server struct {
	Listen string `mapstructure:"listen" validate:"required,hostname_port"`
	// Genesis is an optional YAML file seeding the dev ledger.
	Genesis        string `mapstructure:"genesis"`
	ReferencePrice uint64 `mapstructure:"reference-price" validate:"gt=0"`
}

type Session struct {
	GasBudget   uint64        `mapstructure:"gas-budget" validate:"gt=0"`
	MaxAttempts int           `mapstructure:"max-attempts" validate:"min=1,max=16"`
	RetryWait   time.Duration `mapstructure:"retry-wait" validate:"gte=0"`
	// RequestMode is "local" (wait for local execution) or "cert".
	RequestMode string `mapstructure:"request-mode" validate:"oneof=local cert"`
}

type Submit struct {
	Timeout       time.Duration `mapstructure:"timeout" validate:"gt=0"`
	AwaitInterval time.Duration `mapstructure:"await-interval" validate:"gt=0"`
	AwaitTimeout  time.Duration `mapstructure:"await-timeout" validate:"gt=0"`
}

// Keystore holds hex-encoded 32-byte ed25519 seeds. Dev use only.
type Keystore struct {
	Seeds []string `mapstructure:"seeds" validate:"dive,hexadecimal,len=64"`
}

type Log struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Ledger: Ledger{Address: "127.0.0.1:9184", DialTimeout: 5 * time.Second},
		Server: Server{Listen: "127.0.0.1:9184", ReferencePrice: 1000},
		Session: Session{
			GasBudget:   10_000_000,
			MaxAttempts: 3,
			RetryWait:   100 * time.Millisecond,
			RequestMode: "local",
		},
		Submit: Submit{
			Timeout:       30 * time.Second,
			AwaitInterval: 200 * time.Millisecond,
			AwaitTimeout:  time.Minute,
		},
		Log: Log{Level: "info", Format: "console"},
	}
}

// Load reads file, if not empty, over the defaults, applies PTB_
// environment overrides and validates the result.
func Load(file string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v, Default())

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read: %w", err)
		}
	}

	c := new(Config)
	if err := v.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks every field constraint.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Mode returns the request mode the session submits with.
func (s Session) Mode() types.RequestMode {
	if s.RequestMode == "cert" {
		return types.WaitForEffectsCert
	}
	return types.WaitForLocalExecution
}

// setDefaults registers every key so that AutomaticEnv can see it.
// Unmarshal only consults the environment for keys viper knows about.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("ledger.address", d.Ledger.Address)
	v.SetDefault("ledger.dial-timeout", d.Ledger.DialTimeout)
	v.SetDefault("server.listen", d.Server.Listen)
	v.SetDefault("server.genesis", d.Server.Genesis)
	v.SetDefault("server.reference-price", d.Server.ReferencePrice)
	v.SetDefault("session.gas-budget", d.Session.GasBudget)
	v.SetDefault("session.max-attempts", d.Session.MaxAttempts)
	v.SetDefault("session.retry-wait", d.Session.RetryWait)
	v.SetDefault("session.request-mode", d.Session.RequestMode)
	v.SetDefault("submit.timeout", d.Submit.Timeout)
	v.SetDefault("submit.await-interval", d.Submit.AwaitInterval)
	v.SetDefault("submit.await-timeout", d.Submit.AwaitTimeout)
	if len(d.Keystore.Seeds) > 0 {
		v.SetDefault("keystore.seeds", d.Keystore.Seeds)
	} else {
		_ = v.BindEnv("keystore.seeds")
	}
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}
