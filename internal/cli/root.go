package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/veritas/internal/logging"
	"github.com/ppiankov/veritas/internal/model"
)

// Version is set at build time with -ldflags "-X github.com/ppiankov/veritas/internal/cli.Version=..."
var Version = "v0.1.0"

var (
	cfgFile  string
	verbose  bool
	logLevel string
	logger   = zap.NewNop()
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "veritas",
	Short: "Veritas - ensemble fact checking for free-text claims",
	Long: `Veritas checks the claims in a piece of text against web evidence.

Each claim is judged by an ensemble of classifiers (an LLM, Google Fact Check,
NLI and zero-shot models, fake-news and true/false detectors, embedding
similarity). Their weighted votes decide whether the claim is a FACT, a MYTH
or a SCAM; the claim verdicts are then reduced into one verdict for the whole
submission.

A verdict is an automated opinion, not a ruling. Always check the sources.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initLogger()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
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
	Long:  `Display the version number of Veritas.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("veritas %s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.veritas/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (overrides logging.level)")

	// Bind flags to viper
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		viper.AddConfigPath(filepath.Join(home, ".veritas"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// VERITAS_PIPELINE_MAX_CLAIMS overrides pipeline.max_claims, and so on
	viper.SetEnvPrefix("VERITAS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// omitempty keys are missing from the defaults walk
	_ = viper.BindEnv("llm.api_key")
	_ = viper.BindEnv("llm.base_url")

	if err := registerDefaults(model.DefaultConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "Error registering defaults: %v\n", err)
	}

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// registerDefaults makes every scalar config key known to viper, so that
// environment variables can override keys the config file does not set
func registerDefaults(cfg *model.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return err
	}

	var walk func(prefix string, node map[string]any)
	walk = func(prefix string, node map[string]any) {
		for k, v := range node {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			switch v := v.(type) {
			case map[string]any:
				walk(key, v)
			default:
				viper.SetDefault(key, v)
			}
		}
	}
	walk("", tree)
	return nil
}

func initLogger() error {
	level := viper.GetString("logging.level")
	format := viper.GetString("logging.format")
	if verbose && logLevel == "" {
		level = "debug"
	}

	l, err := logging.New(level, format)
	if err != nil {
		return err
	}
	logger = l
	return nil
}

// loadConfig merges defaults, the config file, VERITAS_* variables and API
// key variables, in increasing priority. Command flags are applied by callers.
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyEnvKeys(cfg, os.Getenv)
	return cfg, nil
}

// applyEnvKeys fills API keys the configuration leaves empty from the conventional variables
func applyEnvKeys(cfg *model.Config, getenv func(string) string) {
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = providerFromEnv(getenv)
	}
	if cfg.LLM.APIKey == "" {
		switch strings.ToLower(cfg.LLM.Provider) {
		case "openai":
			cfg.LLM.APIKey = getenv("OPENAI_API_KEY")
		case "anthropic", "claude":
			cfg.LLM.APIKey = getenv("ANTHROPIC_API_KEY")
		case "groq":
			cfg.LLM.APIKey = getenv("GROQ_API_KEY")
		case "gemini", "google":
			cfg.LLM.APIKey = getenv("GEMINI_API_KEY")
		}
	}
	if cfg.LLM.BaseURL == "" && strings.EqualFold(cfg.LLM.Provider, "ollama") {
		cfg.LLM.BaseURL = getenv("OLLAMA_BASE_URL")
	}

	for i := range cfg.Classifiers {
		c := &cfg.Classifiers[i]
		if c.APIKey != "" {
			continue
		}
		switch c.Kind {
		case model.KindGoogleFactCheck:
			c.APIKey = getenv("GOOGLE_FACTCHECK_API_KEY")
		case model.KindNLI, model.KindZeroShot, model.KindFakeNews, model.KindBinary:
			c.APIKey = getenv("HF_TOKEN")
		case model.KindSimilarity:
			if strings.HasPrefix(c.Model, "gemini") {
				c.APIKey = getenv("GEMINI_API_KEY")
			} else {
				c.APIKey = getenv("OPENAI_API_KEY")
			}
		}
	}

	if cfg.Checkworthy.APIKey == "" {
		cfg.Checkworthy.APIKey = getenv("HF_TOKEN")
	}
}

// providerFromEnv picks the first LLM provider with a key in the environment
func providerFromEnv(getenv func(string) string) string {
	for _, p := range []struct{ name, env string }{
		{"groq", "GROQ_API_KEY"},
		{"openai", "OPENAI_API_KEY"},
		{"anthropic", "ANTHROPIC_API_KEY"},
		{"gemini", "GEMINI_API_KEY"},
	} {
		if getenv(p.env) != "" {
			return p.name
		}
	}
	return ""
}
