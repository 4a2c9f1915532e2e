package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/vaultsync/internal/flagx"
	"github.com/dmitrijs2005/vaultsync/internal/timex"
	"gopkg.in/yaml.v3"
)

// fileConfig mirrors Config for unmarshalling. Zero values leave the
// corresponding Config field untouched.
type fileConfig struct {
	DatabasePath string         `json:"database_path" yaml:"database_path"`
	CapturesDir  string         `json:"captures_dir" yaml:"captures_dir"`
	BusyTimeout  timex.Duration `json:"busy_timeout" yaml:"busy_timeout"`
	LogLevel     string         `json:"log_level" yaml:"log_level"`
	LogFormat    string         `json:"log_format" yaml:"log_format"`
	SyncFolder   string         `json:"sync_folder" yaml:"sync_folder"`
	PurgeDays    int            `json:"purge_days" yaml:"purge_days"`
	S3           struct {
		Region       string `json:"region" yaml:"region"`
		BaseEndpoint string `json:"base_endpoint" yaml:"base_endpoint"`
		AccessKey    string `json:"access_key" yaml:"access_key"`
		SecretKey    string `json:"secret_key" yaml:"secret_key"`
	} `json:"s3" yaml:"s3"`
}

// unmarshal picks YAML for .yaml/.yml files and JSON otherwise.
func unmarshal(path string, data []byte, fc *fileConfig) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, fc)
	default:
		return json.Unmarshal(data, fc)
	}
}

func parseFile(cfg *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var jc fileConfig
	if err := unmarshal(path, data, &jc); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	setString(&cfg.DatabasePath, jc.DatabasePath)
	setString(&cfg.CapturesDir, jc.CapturesDir)
	setString(&cfg.LogLevel, jc.LogLevel)
	setString(&cfg.LogFormat, jc.LogFormat)
	setString(&cfg.SyncFolder, jc.SyncFolder)
	setString(&cfg.S3Region, jc.S3.Region)
	setString(&cfg.S3BaseEndpoint, jc.S3.BaseEndpoint)
	setString(&cfg.S3AccessKey, jc.S3.AccessKey)
	setString(&cfg.S3SecretKey, jc.S3.SecretKey)
	if jc.BusyTimeout.Duration > 0 {
		cfg.BusyTimeout = jc.BusyTimeout.Duration
	}
	if jc.PurgeDays > 0 {
		cfg.PurgeDays = jc.PurgeDays
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
