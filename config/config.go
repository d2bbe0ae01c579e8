// Package config contains code to set the default values and read
// config files to be used throughout the whole application
package config

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/spf13/pflag"
	v "github.com/spf13/viper"
)

var (
	validLogLevels    = []string{"debug", "info", "warn", "error", "fatal"}
	validStorageTypes = []string{"s3", "local"}
)

// StaleSessionAge is how long a staging session may sit untouched before
// the reaper purges it
const StaleSessionAge = time.Hour

// DeleteGraceDelay is how long an exhausted file stays on disk after its
// download limit was reached. Lets transfers already in flight finish
const DeleteGraceDelay = time.Hour

// Setup prepares everything config-related so that the app can
// start working. Function will return an error if something
// is critically wrong and the application can't run because of
// that.
func Setup() error {
	pflag.Parse()
	v.BindPFlags(pflag.CommandLine)

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")

	v.AutomaticEnv()

	//
	// ENVS
	//
	v.BindEnv("app.log_level", "app_log_level")

	v.BindEnv("host.port", "host_port")
	v.BindEnv("host.domain", "host_domain")

	v.BindEnv("storage.type", "storage_type")
	v.BindEnv("storage.root", "storage_root")
	v.BindEnv("storage.database", "storage_database")

	v.BindEnv("upload.max_size", "upload_max_size")

	v.BindEnv("aws.region", "aws_region")
	v.BindEnv("aws.bucket", "aws_bucket")
	v.BindEnv("aws.access_key", "aws_access_key")
	v.BindEnv("aws.secret_access_key", "aws_secret_access_key")

	v.BindEnv("admin.password", "admin_password")
	v.BindEnv("jwt.secret", "jwt_secret")

	v.BindEnv("telegram.enabled", "telegram_enabled")
	v.BindEnv("telegram.bot_token", "telegram_bot_token")
	v.BindEnv("telegram.bot_name", "telegram_bot_name")

	v.BindEnv("gate.serialize_counters", "gate_serialize_counters")
	v.BindEnv("reaper.interval", "reaper_interval")

	//
	// Defaults
	//
	v.SetDefault("app.log_level", "info")

	v.SetDefault("host.port", 8080)
	v.SetDefault("host.domain", "localhost")

	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.root", "uploads")
	v.SetDefault("storage.database", "database.db")

	v.SetDefault("upload.max_size", 100)
	v.SetDefault("upload.max_files", 10)

	v.SetDefault("telegram.enabled", false)

	v.SetDefault("gate.serialize_counters", false)
	v.SetDefault("reaper.interval", 10*time.Minute)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(v.ConfigFileNotFoundError); ok {
			return errors.New("config.toml file is missing")
		}

		return fmt.Errorf("failed to read config file, %w", err)
	}

	if !slices.Contains(validLogLevels, v.GetString("app.log_level")) {
		return errors.New("invalid log level provided")
	}

	if v.GetInt("host.port") <= 0 {
		return errors.New("invalid port provided")
	}

	if v.GetInt("upload.max_size") <= 0 {
		return errors.New("upload.max_size must be bigger than 0")
	}

	if !slices.Contains(validStorageTypes, v.GetString("storage.type")) {
		return errors.New("invalid storage type provided")
	}

	switch v.GetString("storage.type") {
	case "s3":
		{
			if v.GetString("aws.region") == "" {
				return errors.New("aws region can't be empty")
			}
			if v.GetString("aws.bucket") == "" {
				return errors.New("bucket can't be empty")
			}
			if v.GetString("aws.access_key") == "" {
				return errors.New("access key can't be empty")
			}
			if v.GetString("aws.secret_access_key") == "" {
				return errors.New("secret access key can't be empty")
			}
		}
	case "local":
		if v.GetString("storage.root") == "" {
			return errors.New("storage root can't be empty")
		}
	}

	if v.GetString("admin.password") == "" {
		return errors.New("admin password is missing")
	}

	if v.GetString("jwt.secret") == "" {
		return errors.New("jwt secret is missing")
	}

	if v.GetBool("telegram.enabled") {
		if v.GetString("telegram.bot_token") == "" {
			return errors.New("telegram bot token is missing")
		}

		if v.GetString("telegram.bot_name") == "" {
			return errors.New("telegram bot name is missing")
		}
	}

	if v.GetDuration("reaper.interval") <= 0 {
		return errors.New("reaper interval must be bigger than 0")
	}

	v.Set("upload.max_size", v.GetInt64("upload.max_size")<<20)
	return nil
}
