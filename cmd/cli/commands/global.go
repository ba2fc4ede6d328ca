package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/IacopoSb/AnonimaData/cmd/cli/config"
	"github.com/IacopoSb/AnonimaData/internal/storage/implementations/file"
	"github.com/IacopoSb/AnonimaData/pkg/constants"
	"github.com/IacopoSb/AnonimaData/pkg/models"
)

// GlobalOptions carries the persistent flags and the state they load
type GlobalOptions struct {
	ConfigFile string
	EnvFile    string
	Verbose    bool

	Config *config.CLIConfig
	Logger *logrus.Logger
}

var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow)
	boldColor    = color.New(color.Bold)
)

// Load reads the env file and the config and builds the logger. Commands call
// it from PersistentPreRunE.
func (g *GlobalOptions) Load() error {
	if g.EnvFile != "" {
		if err := godotenv.Load(g.EnvFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to load env file: %w", err)
		}
	}

	cfg, err := config.LoadConfig(g.ConfigFile)
	if err != nil {
		return err
	}
	g.Config = cfg

	level := cfg.LogLevel
	if g.Verbose {
		level = constants.LogLevelDebug
	}
	g.Logger = setupLogger(level, cfg.LogFormat)
	return nil
}

func (g *GlobalOptions) settings() *config.CLIConfig {
	if g.Config == nil {
		g.Config = config.DefaultConfig()
	}
	return g.Config
}

func (g *GlobalOptions) log() *logrus.Logger {
	if g.Logger == nil {
		g.Logger = setupLogger(constants.LogLevelWarn, constants.LogFormatText)
	}
	return g.Logger
}

func (g *GlobalOptions) fileStorage(delimiter string, compress bool) (*file.FileStorage, error) {
	if delimiter == "" {
		delimiter = g.settings().Delimiter
	}
	return file.NewFileStorage(&file.FileStorageConfig{
		Delimiter:  delimiter,
		InferTypes: true,
		CreateDirs: true,
		Compress:   compress,
	}, g.log())
}

func loadOptionalRoles(ctx context.Context, storage *file.FileStorage, path string) ([]models.RoleAssignment, error) {
	if path == "" {
		return nil, nil
	}
	return storage.LoadRoles(ctx, path)
}

func setupLogger(level, format string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.WarnLevel
	}
	logger.SetLevel(logLevel)

	if format == constants.LogFormatJSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	return logger
}

// parseParams turns repeated key=value flags into a parameter map. Values stay
// strings; the method schema coerces them.
func parseParams(pairs []string) (map[string]interface{}, error) {
	params := make(map[string]interface{}, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid parameter %q, expected key=value", pair)
		}
		params[strings.ToLower(key)] = strings.TrimSpace(value)
	}
	return params, nil
}

func printSuccess(w io.Writer, format string, args ...interface{}) {
	successColor.Fprintf(w, "✓ %s\n", fmt.Sprintf(format, args...))
}

func printFailure(w io.Writer, format string, args ...interface{}) {
	errorColor.Fprintf(w, "✗ %s\n", fmt.Sprintf(format, args...))
}

func printWarning(w io.Writer, format string, args ...interface{}) {
	warningColor.Fprintf(w, "! %s\n", fmt.Sprintf(format, args...))
}

func printBold(w io.Writer, format string, args ...interface{}) {
	boldColor.Fprintf(w, "%s\n", fmt.Sprintf(format, args...))
}
