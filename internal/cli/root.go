package cli

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"resolvemap/internal/app"
	"resolvemap/internal/types"
)

// version is set at build time via ldflags.
var version = "dev"

const envPrefix = "RESOLVEMAP"

type RootConfig struct {
	ConfigFile  string
	LogLevel    string
	KeyPrefix   string
	MaxDepth    int
	Workers     int
	Format      string
	Compression string
}

func Execute() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		log.Error().Err(err).Msg(errorMessage(err))
		os.Exit(exitCodeForError(err))
	}
}

func newRootCommand() *cobra.Command {
	cfg := RootConfig{}
	cmd := &cobra.Command{
		Use:           "resolvemap",
		Short:         "Map logical asset keys to resource URIs inside packages",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := initConfig(cfg.ConfigFile); err != nil {
				return err
			}
			setupLogging(viper.GetString("log_level"))
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cmd.SetContext(log.Logger.WithContext(ctx))
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&cfg.ConfigFile, "config", "", "Config file path")
	cmd.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", "info", "Log level")
	cmd.PersistentFlags().StringVar(&cfg.KeyPrefix, "key-prefix", "assets", "Key prefix of scanned packages")
	cmd.PersistentFlags().IntVar(&cfg.MaxDepth, "max-depth", 2, "Maximum depth of embedded container scanning")
	cmd.PersistentFlags().IntVar(&cfg.Workers, "workers", 4, "Concurrent package scans")
	cmd.PersistentFlags().StringVar(&cfg.Format, "format", "cbor", "Snapshot format (cbor, yaml)")
	cmd.PersistentFlags().StringVar(&cfg.Compression, "compression", "zstd", "Snapshot compression (none, zstd, lz4)")
	_ = viper.BindPFlag("log_level", cmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("key_prefix", cmd.PersistentFlags().Lookup("key-prefix"))
	_ = viper.BindPFlag("max_depth", cmd.PersistentFlags().Lookup("max-depth"))
	_ = viper.BindPFlag("workers", cmd.PersistentFlags().Lookup("workers"))
	_ = viper.BindPFlag("format", cmd.PersistentFlags().Lookup("format"))
	_ = viper.BindPFlag("compression", cmd.PersistentFlags().Lookup("compression"))

	cmd.AddCommand(newScanCommand())
	cmd.AddCommand(newResolveCommand())
	cmd.AddCommand(newReverseCommand())
	cmd.AddCommand(newSearchCommand())
	cmd.AddCommand(newAnchorCommand())
	cmd.AddCommand(newExportCommand())
	cmd.AddCommand(newInspectCommand())
	cmd.AddCommand(newWatchCommand())
	return cmd
}

func initConfig(configFile string) error {
	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv()

	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("failed to read config file").
				WithCause(err)
		}
		return nil
	}

	viper.SetConfigName("resolvemap")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.config/resolvemap")
	if err := viper.ReadInConfig(); err != nil {
		return nil
	}
	return nil
}

func setupLogging(level string) {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// newAppService builds the service from the merged flag and config
// settings.
func newAppService() (app.Service, error) {
	cfg := app.DefaultConfig()
	cfg.KeyPrefix = viper.GetString("key_prefix")
	cfg.MaxDepth = viper.GetInt("max_depth")
	cfg.Workers = viper.GetInt("workers")
	cfg.Format = types.SnapshotFormat(strings.ToLower(strings.TrimSpace(viper.GetString("format"))))

	compression, ok := types.ParseCompression(strings.ToLower(strings.TrimSpace(viper.GetString("compression"))))
	if !ok {
		return app.Service{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("unknown compression " + viper.GetString("compression"))
	}
	cfg.Compression = compression

	if viper.IsSet("providers") {
		var rules []types.ProviderRule
		if err := viper.UnmarshalKey("providers", &rules); err != nil {
			return app.Service{}, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("invalid providers configuration").
				WithCause(err)
		}
		cfg.Providers = rules
	}
	return app.NewService(cfg), nil
}

func exitCodeForError(err error) int {
	switch errbuilder.CodeOf(err) {
	case errbuilder.CodeInvalidArgument:
		return 2
	case errbuilder.CodeAlreadyExists:
		return 3
	case errbuilder.CodeFailedPrecondition:
		return 4
	case errbuilder.CodeNotFound:
		return 5
	case errbuilder.CodeInternal:
		return 6
	default:
		return 1
	}
}

func errorMessage(err error) string {
	var builder *errbuilder.ErrBuilder
	if errors.As(err, &builder) && strings.TrimSpace(builder.Msg) != "" {
		return builder.Msg
	}
	return err.Error()
}
