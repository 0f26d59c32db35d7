package cli

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/surveyfill/internal/model"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// version is set at build time with -ldflags "-X .../internal/cli.version=..."
var version = "v0.3.0"

var (
	cfgFile  string
	verbose  bool
	logLevel string

	logger    *zap.Logger
	configErr error
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "surveyfill",
	Short: "surveyfill - pick the most positive answer on radio-button surveys",
	Long: `surveyfill scores every option of every radio-button question by keyword,
picks the most positive one, and checks it.

Negative answers ("no", "tidak", "dissatisfied", ...) are never chosen unless
nothing else is available. Options already selected are left alone, so running
twice changes nothing the second time.

It works on saved HTML files, fetched URLs, and live pages in a browser.
It never submits the form.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := zapcore.ParseLevel(logLevel)
		if err != nil {
			return fmt.Errorf("invalid --log-level: %w", err)
		}
		if verbose {
			level = zapcore.DebugLevel
		}

		config := zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(level)
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		if configErr != nil {
			return configErr
		}
		if used := viper.ConfigFileUsed(); used != "" {
			logger.Debug("using config file", zap.String("path", used))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("surveyfill %s\n", version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.surveyfill/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	_ = viper.BindPFlag("output.verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig seeds viper with the defaults, then layers the config file and
// SURVEYFILL_* environment variables on top
func initConfig() {
	configErr = loadViper()
}

func loadViper() error {
	viper.SetConfigType("yaml")

	defaults, err := yaml.Marshal(model.DefaultConfig())
	if err != nil {
		return fmt.Errorf("encode defaults: %w", err)
	}
	if err := viper.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return fmt.Errorf("load defaults: %w", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".surveyfill"))
		}
		viper.SetConfigName("config")
	}

	// SURVEYFILL_HTTP_TIMEOUT overrides http.timeout
	viper.SetEnvPrefix("SURVEYFILL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Keys absent from the encoded defaults are unknown to AutomaticEnv
	for _, key := range []string{
		"llm.api_key", "llm.base_url",
		"http.http_proxy", "http.https_proxy", "http.no_proxy",
		"browser.bin", "browser.debugger_url",
	} {
		_ = viper.BindEnv(key)
	}

	if err := viper.MergeInConfig(); err != nil {
		// Only an explicitly requested file must exist
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && (errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)) {
			return nil
		}
		return fmt.Errorf("read config %s: %w", viper.ConfigFileUsed(), err)
	}
	return nil
}

// loadConfig decodes the merged viper state
func loadConfig() (*model.Config, error) {
	cfg := &model.Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}
