package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/dmitrijs2005/vaultsync/internal/client/syncfolder"
	"github.com/go-playground/validator/v10"
)

// Config holds runtime settings for the vaultctl CLI.
//
// Store-level settings that must travel with the database (device identity,
// last sync watermark, retention) live in the sync_settings table instead.
type Config struct {
	DatabasePath string        `default:"data/vaults.db" validate:"required"`
	CapturesDir  string        `default:"data/captures" validate:"required"`
	BusyTimeout  time.Duration `default:"5s" validate:"gte=0"`

	LogLevel  string `default:"info" validate:"oneof=debug info warn warning error"`
	LogFormat string `default:"text" validate:"oneof=text json"`

	// SyncFolder, when set, replaces the sync_folder stored in the database
	// at startup. It is either a local directory or s3://bucket/prefix.
	SyncFolder string `validate:"omitempty,syncfolder"`
	// PurgeDays, when positive, replaces purge_deleted_after_days.
	PurgeDays int `validate:"gte=0"`

	S3Region       string `default:"us-east-1"`
	S3BaseEndpoint string `validate:"omitempty,url"`
	S3AccessKey    string `validate:"required_with=S3SecretKey"`
	S3SecretKey    string `validate:"required_with=S3AccessKey"`
}

// LoadDefaults populates the zero fields of c from the default tags.
func (c *Config) LoadDefaults() {
	if err := defaults.Set(c); err != nil {
		// only reachable with a malformed tag
		panic(err)
	}
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	if err := newValidator().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("syncfolder", func(fl validator.FieldLevel) bool {
		loc := fl.Field().String()
		if !strings.HasPrefix(loc, "s3://") {
			return true
		}
		_, _, err := syncfolder.ParseS3Location(loc)
		return err == nil
	})
	return v
}

// LoadConfig applies defaults, then the JSON or YAML file named by
// -c/-config (if any), then command-line flags. Later sources take
// precedence. The result is validated.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseFile(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
