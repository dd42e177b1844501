package tickflow

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/petrijr/tickflow/pkg/api"
)

// Environment variables that override file settings.
const (
	EnvTicksPerStage        = "TICKFLOW_TICKS_PER_STAGE"
	EnvMaxAdmissionRetries  = "TICKFLOW_MAX_ADMISSION_RETRIES"
	EnvOffThreadWorkers     = "TICKFLOW_OFF_THREAD_WORKERS"
	EnvTickInterval         = "TICKFLOW_TICK_INTERVAL"
	EnvExternalIsolatedHost = "TICKFLOW_EXTERNAL_ISOLATED_HOST"
	EnvHistory              = "TICKFLOW_HISTORY"
	EnvSQLitePath           = "TICKFLOW_SQLITE_PATH"
	EnvRedisAddr            = "TICKFLOW_REDIS_ADDR"
	EnvRedisPrefix          = "TICKFLOW_REDIS_PREFIX"
)

// LoadConfig reads YAML settings from path over DefaultConfig, applies
// TICKFLOW_* environment overrides and validates the result. An empty path,
// or a path that does not exist, skips the file.
func LoadConfig(path string) (Config, error) {
	cfg := api.DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	var errs []error

	envInt := func(key string, dst *int) {
		v := os.Getenv(key)
		if v == "" {
			return
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = n
	}
	envString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	envInt(EnvTicksPerStage, &cfg.TicksPerStage)
	envInt(EnvMaxAdmissionRetries, &cfg.MaxAdmissionRetries)
	envInt(EnvOffThreadWorkers, &cfg.OffThreadWorkers)

	if v := os.Getenv(EnvTickInterval); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", EnvTickInterval, err))
		} else {
			cfg.TickInterval = d
		}
	}
	if v := os.Getenv(EnvExternalIsolatedHost); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", EnvExternalIsolatedHost, err))
		} else {
			cfg.ExternalIsolatedHost = b
		}
	}

	var history string
	envString(EnvHistory, &history)
	if history != "" {
		cfg.History = api.HistoryBackend(history)
	}
	envString(EnvSQLitePath, &cfg.SQLitePath)
	envString(EnvRedisAddr, &cfg.RedisAddr)
	envString(EnvRedisPrefix, &cfg.RedisPrefix)

	if len(errs) > 0 {
		return fmt.Errorf("tickflow: invalid environment: %w", errors.Join(errs...))
	}
	return nil
}
