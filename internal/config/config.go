// Package config loads and validates notesock's runtime configuration:
// CLI flags layered over an optional JSON config file and
// NOTESOCK_-prefixed environment variables, with CLI taking final
// precedence.
package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/iancoleman/strcase"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	apperrors "github.com/sir-photch/notesock/internal/pkg/errors"
)

// AppName is the application name; upper-cased, it is the environment
// variable prefix (NOTESOCK_).
const AppName = "notesock"

// Defaults, matching the documented CLI flag table exactly.
const (
	DefaultSockDir         = "/run/notesock"
	DefaultMode            = 0o660
	DefaultHost            = "http://localhost"
	DefaultWorkers         = 2
	DefaultMaxSizeKiB      = 512
	DefaultTimeoutMS       = 2000
	DefaultDirectory       = "/var/lib/notesock"
	DefaultCleanupAfterSec = 240
	DefaultNoCleanup       = false
	DefaultIDLower         = "1000"
	DefaultIDUpper         = "zzzz"
	DefaultTalkProxy       = false
)

// SocketName is the fixed filename of the unix socket within SockDir
// ("<sockdir>/note.sock").
const SocketName = "note.sock"

// AppConfig is the fully resolved, validated runtime configuration.
type AppConfig struct {
	SockDir         string `koanf:"sockdir" validate:"required"`
	Mode            uint32 `koanf:"mode"`
	Host            string `koanf:"host" validate:"required,url"`
	Workers         int    `koanf:"workers" validate:"min=1"`
	MaxSizeKiB      int    `koanf:"max-size-kib" validate:"min=1"`
	TimeoutMS       int    `koanf:"timeout-ms" validate:"min=1"`
	Directory       string `koanf:"directory" validate:"required"`
	CleanupAfterSec int    `koanf:"cleanup-after-sec" validate:"min=1"`
	NoCleanup       bool   `koanf:"no-cleanup"`
	IDLower         string `koanf:"id-lower" validate:"required"`
	IDUpper         string `koanf:"id-upper" validate:"required"`
	TalkProxy       bool   `koanf:"talk-proxy"`

	// ConfigFile, when non-empty, is a JSON file layered beneath flags and
	// environment overrides.
	ConfigFile string `koanf:"-"`

	// MonitorSchedule is the cron expression for the capacity monitor
	// (internal/monitor).
	MonitorSchedule  string `koanf:"monitor-schedule"`
	MonitorMaxPregen int    `koanf:"monitor-max-pregen" validate:"min=0"`

	// AcceptRate caps accepted connections per second; MaxPendingConns
	// caps accepted-but-undrained connections. Zero means unlimited for
	// both.
	AcceptRate      float64 `koanf:"accept-rate" validate:"min=0"`
	MaxPendingConns int     `koanf:"max-pending-conns" validate:"min=0"`

	// TelegramBotToken / TelegramChatID enable internal/alert when both
	// are set; the zero value leaves alerting a no-op.
	TelegramBotToken string `koanf:"telegram-bot-token"`
	TelegramChatID   int64  `koanf:"telegram-chat-id"`

	// Verbosity is a -v/--verbose counter controlling log level.
	Verbosity int `koanf:"-"`
}

var validate = validator.New()

// Load builds an AppConfig from defaults, an optional JSON config file,
// NOTESOCK_-prefixed environment variables, and finally the parsed flags
// (highest precedence).
func Load(flags *pflag.FlagSet) (*AppConfig, error) {
	k := koanf.New(".")

	if err := k.Load(defaultsProvider(), nil); err != nil {
		return nil, apperrors.Wrap(err, apperrors.Configuration, "load built-in defaults")
	}

	if configFile, _ := flags.GetString("config"); configFile != "" {
		if err := k.Load(file.Provider(configFile), json.Parser()); err != nil {
			return nil, apperrors.Wrapf(err, apperrors.Configuration, "read config file %q", configFile)
		}
	}

	envProvider := env.Provider(strings.ToUpper(AppName)+"_", ".", func(s string) string {
		trimmed := strings.TrimPrefix(s, strings.ToUpper(AppName)+"_")
		return strcase.ToKebab(trimmed)
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, apperrors.Wrap(err, apperrors.Configuration, "read environment overrides")
	}

	if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
		return nil, apperrors.Wrap(err, apperrors.Configuration, "read command-line flags")
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, apperrors.Wrap(err, apperrors.Configuration, "unmarshal configuration")
	}

	if configFile, _ := flags.GetString("config"); configFile != "" {
		cfg.ConfigFile = configFile
	}
	if v, err := flags.GetCount("verbose"); err == nil {
		cfg.Verbosity = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks struct tags plus the cross-field invariants the
// validator library cannot express on its own.
func (c *AppConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return apperrors.Wrap(err, apperrors.Configuration, describeValidationError(err))
	}

	lo, err := decodeBase36Bound(c.IDLower)
	if err != nil {
		return apperrors.Wrapf(err, apperrors.Configuration, "id-lower %q", c.IDLower)
	}
	hi, err := decodeBase36Bound(c.IDUpper)
	if err != nil {
		return apperrors.Wrapf(err, apperrors.Configuration, "id-upper %q", c.IDUpper)
	}
	if lo >= hi {
		return apperrors.Newf(apperrors.Configuration, "id-lower (%s) must be strictly less than id-upper (%s)", c.IDLower, c.IDUpper)
	}

	if c.Mode > 0o777 {
		return apperrors.Newf(apperrors.Configuration, "mode %o is not a valid POSIX permission mask", c.Mode)
	}

	return nil
}

func describeValidationError(err error) string {
	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return "invalid configuration"
	}

	parts := make([]string, 0, len(validationErrs))
	for _, fieldErr := range validationErrs {
		parts = append(parts, fmt.Sprintf("%s failed %q", fieldErr.Field(), fieldErr.Tag()))
	}
	return strings.Join(parts, "; ")
}
