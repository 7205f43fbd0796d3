// Package config loads cookbook settings.
//
// Configuration is read in the following order (later sources override
// earlier ones):
//  1. Default values
//  2. A YAML file (./cookbook.yaml, /etc/cookbook/cookbook.yaml, or --config)
//  3. Environment variables with the COOKBOOK_ prefix, e.g.
//     COOKBOOK_RECIPE_APP_NAME=Tout or COOKBOOK_TARGET_MODE=ssh
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/eniac111/cookbook/internal/modules/cron"
	"github.com/eniac111/cookbook/internal/resolver"
	"github.com/eniac111/cookbook/internal/types"
)

// Config is the root configuration structure.
type Config struct {
	Recipe  RecipeConfig  `mapstructure:"recipe"`
	Target  TargetConfig  `mapstructure:"target"`
	Logging LoggingConfig `mapstructure:"logging"`
	Apply   ApplyConfig   `mapstructure:"apply"`
}

// RecipeConfig holds the per-deployment recipe settings.
type RecipeConfig struct {
	// AppName is the application the recurring jobs and the SSL redirect
	// belong to. It is also the database name.
	AppName           string          `mapstructure:"app_name"`
	RailsEnv          string          `mapstructure:"rails_env"`
	DeployUser        string          `mapstructure:"deploy_user"`
	SchedulerHostName string          `mapstructure:"scheduler_host_name"`
	WebServer         string          `mapstructure:"web_server"`
	LogShipper        string          `mapstructure:"log_shipper"`
	LogFilesPath      string          `mapstructure:"log_files_path"`
	LogDestination    LogDestination  `mapstructure:"log_destination"`
	Schedules         SchedulesConfig `mapstructure:"schedules"`
}

// LogDestination is the remote syslog endpoint.
type LogDestination struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// SchedulesConfig holds the minute/hour fields of the recurring jobs.
type SchedulesConfig struct {
	Dispatch types.Schedule `mapstructure:"dispatch"`
	Reminder types.Schedule `mapstructure:"reminder"`
	Metrics  types.Schedule `mapstructure:"metrics"`
}

// TargetConfig selects where plans are applied.
type TargetConfig struct {
	// Mode is "local" or "ssh". In ssh mode every host of the node
	// document is configured in turn.
	Mode                  string        `mapstructure:"mode"`
	KnownHosts            string        `mapstructure:"known_hosts"`
	InsecureIgnoreHostKey bool          `mapstructure:"insecure_ignore_host_key"`
	ConnectTimeout        time.Duration `mapstructure:"connect_timeout"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the log level (debug, info, warn, error)
	Level string `mapstructure:"level"`

	// Format is the log format (json, text)
	Format string `mapstructure:"format"`
}

// ApplyConfig controls materialization.
type ApplyConfig struct {
	// ManifestDir keeps one checksum manifest per target.
	ManifestDir string `mapstructure:"manifest_dir"`
	// Root, when set, prefixes every local target path. Useful to render
	// a plan into a scratch directory.
	Root   string `mapstructure:"root"`
	DryRun bool   `mapstructure:"dry_run"`
}

// Load reads configuration from a file and environment variables.
// If cfgFile is empty, it searches for cookbook.yaml in standard locations.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("cookbook")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/cookbook")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isFileNotFoundError(err) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("COOKBOOK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := resolver.DefaultRecipe()

	v.SetDefault("recipe.app_name", d.AppName)
	v.SetDefault("recipe.rails_env", d.RailsEnv)
	v.SetDefault("recipe.deploy_user", d.DeployUser)
	v.SetDefault("recipe.scheduler_host_name", d.SchedulerHostName)
	v.SetDefault("recipe.web_server", d.WebServer)
	v.SetDefault("recipe.log_shipper", d.LogShipper)
	v.SetDefault("recipe.log_files_path", d.LogFilesPath)
	v.SetDefault("recipe.log_destination.host", d.LogDestination.Host)
	v.SetDefault("recipe.log_destination.port", d.LogDestination.Port)
	v.SetDefault("recipe.schedules.dispatch.minute", d.DispatchSchedule.Minute)
	v.SetDefault("recipe.schedules.dispatch.hour", d.DispatchSchedule.Hour)
	v.SetDefault("recipe.schedules.reminder.minute", d.ReminderSchedule.Minute)
	v.SetDefault("recipe.schedules.reminder.hour", d.ReminderSchedule.Hour)
	v.SetDefault("recipe.schedules.metrics.minute", d.MetricsSchedule.Minute)
	v.SetDefault("recipe.schedules.metrics.hour", d.MetricsSchedule.Hour)

	v.SetDefault("target.mode", "local")
	v.SetDefault("target.known_hosts", "~/.ssh/known_hosts")
	v.SetDefault("target.insecure_ignore_host_key", false)
	v.SetDefault("target.connect_timeout", "30s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("apply.manifest_dir", "/var/lib/cookbook")
	v.SetDefault("apply.root", "")
	v.SetDefault("apply.dry_run", false)
}

func validate(cfg *Config) error {
	if err := resolver.ValidateAppName(cfg.Recipe.AppName); err != nil {
		return fmt.Errorf("recipe.app_name: %w", err)
	}
	if cfg.Recipe.DeployUser == "" {
		return fmt.Errorf("recipe.deploy_user is required")
	}
	if cfg.Recipe.SchedulerHostName == "" {
		return fmt.Errorf("recipe.scheduler_host_name is required")
	}
	if cfg.Recipe.WebServer == "" || strings.Contains(cfg.Recipe.WebServer, "/") {
		return fmt.Errorf("invalid recipe.web_server: %q", cfg.Recipe.WebServer)
	}
	if cfg.Recipe.LogShipper == "" || strings.Contains(cfg.Recipe.LogShipper, "/") {
		return fmt.Errorf("invalid recipe.log_shipper: %q", cfg.Recipe.LogShipper)
	}
	if p := cfg.Recipe.LogDestination.Port; p < 1 || p > 65535 {
		return fmt.Errorf("invalid recipe.log_destination.port: %d", p)
	}
	schedules := []struct {
		name     string
		schedule types.Schedule
	}{
		{"dispatch", cfg.Recipe.Schedules.Dispatch},
		{"reminder", cfg.Recipe.Schedules.Reminder},
		{"metrics", cfg.Recipe.Schedules.Metrics},
	}
	for _, s := range schedules {
		if err := cron.Validate(s.schedule); err != nil {
			return fmt.Errorf("recipe.schedules.%s: %w", s.name, err)
		}
	}

	switch cfg.Target.Mode {
	case "local", "ssh":
	default:
		return fmt.Errorf("invalid target.mode: %q", cfg.Target.Mode)
	}

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level: %q", cfg.Logging.Level)
	}
	switch cfg.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid logging.format: %q", cfg.Logging.Format)
	}
	return nil
}

// ResolverRecipe converts the recipe section into resolver settings.
func (c *Config) ResolverRecipe() resolver.Recipe {
	r := c.Recipe
	return resolver.Recipe{
		AppName:           r.AppName,
		RailsEnv:          r.RailsEnv,
		DeployUser:        r.DeployUser,
		SchedulerHostName: r.SchedulerHostName,
		WebServer:         r.WebServer,
		LogShipper:        r.LogShipper,
		LogFilesPath:      r.LogFilesPath,
		LogDestination:    resolver.LogDestination{Host: r.LogDestination.Host, Port: r.LogDestination.Port},
		DispatchSchedule:  r.Schedules.Dispatch,
		ReminderSchedule:  r.Schedules.Reminder,
		MetricsSchedule:   r.Schedules.Metrics,
	}
}

// isFileNotFoundError checks if an error is a file not found error.
func isFileNotFoundError(err error) bool {
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return errors.Is(pathErr, os.ErrNotExist)
	}
	return false
}
