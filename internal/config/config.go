package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// FileName is the extension settings file looked up in the plugin folder.
const FileName = "vehicle_sfx.cfg.json"

// LoggingConfig holds diagnostic log settings.
type LoggingConfig struct {
	Level          string        `json:"logLevel" mapstructure:"logLevel"`
	File           string        `json:"logFile" mapstructure:"logFile"`
	GraylogEnabled bool          `json:"graylogEnabled" mapstructure:"graylogEnabled"`
	GraylogAddress string        `json:"graylogAddress" mapstructure:"graylogAddress"`
	FrameLogBurst  uint32        `json:"frameLogBurst" mapstructure:"frameLogBurst"`
	FrameLogPeriod time.Duration `json:"frameLogPeriod" mapstructure:"frameLogPeriod"`
	FrameLogEvery  uint32        `json:"frameLogEvery" mapstructure:"frameLogEvery"`
}

// PathsConfig holds the asset and tuning locations, relative to the plugin folder.
type PathsConfig struct {
	AssetsDir  string `json:"assetsDir" mapstructure:"assetsDir"`
	TuningFile string `json:"tuningFile" mapstructure:"tuningFile"`
}

// MetricsConfig controls the periodic metrics export.
type MetricsConfig struct {
	Enabled  bool          `json:"enabled" mapstructure:"enabled"`
	File     string        `json:"file" mapstructure:"file"`
	Interval time.Duration `json:"interval" mapstructure:"interval"`
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file. The defaults are
// in place even when an error is returned.
func Load(configDir string) error {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logFile", "VehicleSFX_log.txt")
	viper.SetDefault("assetsDir", "vsfx")
	viper.SetDefault("tuningFile", "VehicleSFX.ini")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("frameLog.burst", 5)
	viper.SetDefault("frameLog.period", "10s")
	viper.SetDefault("frameLog.every", 100)

	viper.SetDefault("metrics.enabled", false)
	viper.SetDefault("metrics.file", "VehicleSFX_metrics.json")
	viper.SetDefault("metrics.interval", "30s")

	viper.SetEnvPrefix("VSFX")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

// GetLoggingConfig returns the logging section.
func GetLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:          viper.GetString("logLevel"),
		File:           viper.GetString("logFile"),
		GraylogEnabled: viper.GetBool("graylog.enabled"),
		GraylogAddress: viper.GetString("graylog.address"),
		FrameLogBurst:  viper.GetUint32("frameLog.burst"),
		FrameLogPeriod: viper.GetDuration("frameLog.period"),
		FrameLogEvery:  viper.GetUint32("frameLog.every"),
	}
}

// GetPathsConfig returns the asset and tuning locations.
func GetPathsConfig() PathsConfig {
	return PathsConfig{
		AssetsDir:  viper.GetString("assetsDir"),
		TuningFile: viper.GetString("tuningFile"),
	}
}

// GetMetricsConfig returns the metrics export settings.
func GetMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:  viper.GetBool("metrics.enabled"),
		File:     viper.GetString("metrics.file"),
		Interval: viper.GetDuration("metrics.interval"),
	}
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}
