package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/IacopoSb/AnonimaData/internal/privacy"
	"github.com/IacopoSb/AnonimaData/pkg/constants"
)

type CLIConfig struct {
	Seed             int64  `mapstructure:"seed" yaml:"seed"`
	UnassignedPolicy string `mapstructure:"unassigned_policy" yaml:"unassigned_policy"`
	SampleSize       int    `mapstructure:"sample_size" yaml:"sample_size"`
	LogLevel         string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat        string `mapstructure:"log_format" yaml:"log_format"`
	DefaultMethod    string `mapstructure:"default_method" yaml:"default_method"`
	DefaultFormat    string `mapstructure:"default_format" yaml:"default_format"`
	Delimiter        string `mapstructure:"delimiter" yaml:"delimiter"`
}

func defaultConfig() *CLIConfig {
	return &CLIConfig{
		UnassignedPolicy: constants.UnassignedHeuristic,
		SampleSize:       constants.DefaultSampleSize,
		LogLevel:         constants.LogLevelWarn,
		LogFormat:        constants.LogFormatText,
		DefaultMethod:    constants.MethodKAnonymity,
		DefaultFormat:    constants.FormatCSV,
		Delimiter:        ",",
	}
}

// EngineConfig converts the CLI settings into the anonymizer configuration.
// A zero seed selects the secure noise source.
func (c *CLIConfig) EngineConfig() *privacy.Config {
	policy, err := privacy.ParseUnassignedPolicy(c.UnassignedPolicy)
	if err != nil {
		policy = privacy.PolicyHeuristic
	}
	engine := &privacy.Config{
		UnassignedPolicy: policy,
		SampleSize:       c.SampleSize,
	}
	if c.Seed != 0 {
		seed := c.Seed
		engine.Seed = &seed
	}
	return engine
}

func LoadConfig(cfgFile string) (*CLIConfig, error) {
	config := defaultConfig()
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}

		v.AddConfigPath(filepath.Join(home, constants.ConfigDirName))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(constants.EnvPrefix)
	v.AutomaticEnv()

	v.SetDefault("seed", config.Seed)
	v.SetDefault("unassigned_policy", config.UnassignedPolicy)
	v.SetDefault("sample_size", config.SampleSize)
	v.SetDefault("log_level", config.LogLevel)
	v.SetDefault("log_format", config.LogFormat)
	v.SetDefault("default_method", config.DefaultMethod)
	v.SetDefault("default_format", config.DefaultFormat)
	v.SetDefault("delimiter", config.Delimiter)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if _, err := privacy.ParseUnassignedPolicy(config.UnassignedPolicy); err != nil {
		return nil, err
	}
	config.DefaultFormat = strings.ToLower(config.DefaultFormat)

	return config, nil
}

func SaveConfig(config *CLIConfig, cfgFile string) (string, error) {
	if cfgFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}

		configDir := filepath.Join(home, constants.ConfigDirName)
		if err := os.MkdirAll(configDir, 0755); err != nil {
			return "", fmt.Errorf("error creating config directory: %w", err)
		}

		cfgFile = filepath.Join(configDir, "config.yaml")
	}

	v := viper.New()
	v.Set("seed", config.Seed)
	v.Set("unassigned_policy", config.UnassignedPolicy)
	v.Set("sample_size", config.SampleSize)
	v.Set("log_level", config.LogLevel)
	v.Set("log_format", config.LogFormat)
	v.Set("default_method", config.DefaultMethod)
	v.Set("default_format", config.DefaultFormat)
	v.Set("delimiter", config.Delimiter)

	return cfgFile, v.WriteConfigAs(cfgFile)
}

func DefaultConfig() *CLIConfig {
	return defaultConfig()
}

func GetDefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, constants.ConfigDirName, "config.yaml")
}
