package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/IacopoSb/AnonimaData/internal/observability/health"
	"github.com/IacopoSb/AnonimaData/internal/privacy"
	"github.com/IacopoSb/AnonimaData/internal/storage/implementations/redis"
	"github.com/IacopoSb/AnonimaData/internal/storage/implementations/s3"
	"github.com/IacopoSb/AnonimaData/pkg/constants"
)

type WorkerConfig struct {
	WorkerID        string        `mapstructure:"worker_id"`
	Concurrency     int           `mapstructure:"concurrency"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	JobTimeout      time.Duration `mapstructure:"job_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	ResultFormat    string        `mapstructure:"result_format"`
	MetricsPort     int           `mapstructure:"metrics_port"`
	LogLevel        string        `mapstructure:"log_level"`
	LogFormat       string        `mapstructure:"log_format"`

	Queues QueueConfig         `mapstructure:"queues"`
	Engine privacy.Config      `mapstructure:"engine"`
	Redis  redis.RedisConfig   `mapstructure:"redis"`
	S3     s3.S3Config         `mapstructure:"s3"`
	Health health.HealthConfig `mapstructure:"health"`
}

// QueueConfig names the redis lists the worker reads and writes
type QueueConfig struct {
	Requests string `mapstructure:"requests"`
	Results  string `mapstructure:"results"`
	Errors   string `mapstructure:"errors"`
}

// ResultsEnabled reports whether full outputs go to S3 instead of inline
func (c *WorkerConfig) ResultsEnabled() bool {
	return c.S3.Bucket != ""
}

func (c *WorkerConfig) Validate() error {
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive, got %d", c.Concurrency)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	if c.Queues.Requests == "" || c.Queues.Results == "" || c.Queues.Errors == "" {
		return fmt.Errorf("request, result and error queue names are required")
	}
	policy, err := privacy.ParseUnassignedPolicy(string(c.Engine.UnassignedPolicy))
	if err != nil {
		return err
	}
	c.Engine.UnassignedPolicy = policy
	switch strings.ToLower(c.ResultFormat) {
	case constants.FormatCSV, constants.FormatJSON:
	default:
		return fmt.Errorf("unsupported result format: %s", c.ResultFormat)
	}
	return nil
}

func defineFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "Config file (yaml)")
	fs.String("env-file", ".env", "Environment file loaded before reading configuration")
	fs.String("worker-id", generateWorkerID(), "Unique worker ID")
	fs.Int("concurrency", constants.DefaultWorkerConcurrency, "Number of concurrent jobs")
	fs.Duration("poll-interval", constants.DefaultWorkerPollInterval, "How long a queue poll blocks")
	fs.Duration("job-timeout", 5*time.Minute, "Maximum duration of a single job")
	fs.String("result-format", constants.FormatCSV, "Format of the full anonymized output (csv, json)")
	fs.Int("metrics-port", constants.DefaultMetricsPort, "Port serving /metrics and /healthz")
	fs.String("log-level", constants.DefaultLogLevel, "Log level")
	fs.String("log-format", constants.DefaultLogFormat, "Log format (json, text)")
	fs.String("redis-addr", "localhost:6379", "Redis address")
	fs.String("s3-bucket", "", "S3 bucket for full results; empty returns results inline")
	fs.Int64("seed", 0, "Seed for reproducible noise; 0 uses the secure source")
	fs.String("unassigned-policy", constants.UnassignedHeuristic, "Role of columns without an assignment (heuristic, preserve, anonymize)")
}

var flagKeys = map[string]string{
	"worker-id":         "worker_id",
	"concurrency":       "concurrency",
	"poll-interval":     "poll_interval",
	"job-timeout":       "job_timeout",
	"result-format":     "result_format",
	"metrics-port":      "metrics_port",
	"log-level":         "log_level",
	"log-format":        "log_format",
	"redis-addr":        "redis.addr",
	"s3-bucket":         "s3.bucket",
	"seed":              "engine.seed",
	"unassigned-policy": "engine.unassigned_policy",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("shutdown_timeout", constants.DefaultShutdownTimeout)

	v.SetDefault("queues.requests", constants.QueueAnonymizationRequests)
	v.SetDefault("queues.results", constants.QueueAnonymizationResults)
	v.SetDefault("queues.errors", constants.QueueErrorNotifications)

	v.SetDefault("engine.sample_size", constants.DefaultSampleSize)

	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.read_timeout", 3*time.Second)
	v.SetDefault("redis.write_timeout", 3*time.Second)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.status_ttl", constants.DefaultJobStatusTTL)

	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.timeout", 30*time.Second)
	v.SetDefault("s3.max_retries", 3)
	v.SetDefault("s3.use_compression", true)

	v.SetDefault("health.enabled", true)
	v.SetDefault("health.check_interval", 30*time.Second)
	v.SetDefault("health.timeout", 5*time.Second)
}

// loadConfig merges defaults, the optional config file, ANONIMADATA_*
// environment variables and explicitly set flags, in increasing priority
func loadConfig(args []string) (*WorkerConfig, error) {
	fs := pflag.NewFlagSet("worker", pflag.ContinueOnError)
	defineFlags(fs)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	envFile, _ := fs.GetString("env-file")
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for name, key := range flagKeys {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}

	if configFile, _ := fs.GetString("config"); configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	config := &WorkerConfig{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	// 0 keeps the secure source
	if config.Engine.Seed != nil && *config.Engine.Seed == 0 {
		config.Engine.Seed = nil
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func generateWorkerID() string {
	hostname, _ := os.Hostname()
	return fmt.Sprintf("%s-%d", hostname, os.Getpid())
}
