package cmd

import (
	"errors"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "govcon-responder"
)

type Config struct {
	Company    *CompanyConfig `mapstructure:"company"`
	Documents  string         `mapstructure:"documents"`
	OutputDir  string         `mapstructure:"output-dir"`
	StorePath  string         `mapstructure:"store-path"`
	MinScore   float64        `mapstructure:"min-score"`
	ReviewMode bool           `mapstructure:"review-mode"`
	AutoSubmit bool           `mapstructure:"auto-submit"`

	MaxApplicationsPerDay int           `mapstructure:"max-applications-per-day"`
	MaxOpportunities      int           `mapstructure:"max-opportunities"`
	MinLeadTime           time.Duration `mapstructure:"min-lead-time"`
	Workers               int           `mapstructure:"workers"`

	Sources *SourcesConfig `mapstructure:"sources"`
	AI      *AIConfig      `mapstructure:"ai"`
}

type CompanyConfig struct {
	Name       string   `mapstructure:"name"`
	DUNS       string   `mapstructure:"duns"`
	NAICSCodes []string `mapstructure:"naics-codes"`
}

type SourcesConfig struct {
	SamGov    *SamGovConfig    `mapstructure:"sam-gov"`
	GrantsGov *GrantsGovConfig `mapstructure:"grants-gov"`
	Files     []string         `mapstructure:"files"`
}

type SamGovConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	APIKeyFile string        `mapstructure:"api-key-file"`
	BaseURL    string        `mapstructure:"base-url"`
	Lookback   time.Duration `mapstructure:"lookback"`
	Limit      int           `mapstructure:"limit"`
	PageSize   int           `mapstructure:"page-size"`
}

type GrantsGovConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	SearchURL string `mapstructure:"search-url"`
	FetchURL  string `mapstructure:"fetch-url"`
	Keyword   string `mapstructure:"keyword"`
	Limit     int    `mapstructure:"limit"`
	PageSize  int    `mapstructure:"page-size"`
}

type AIConfig struct {
	Provider string        `mapstructure:"provider"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKeyFile    string `mapstructure:"api-key-file"`
	Model         string `mapstructure:"model"`
	MaxRetries    int    `mapstructure:"max-retries"`
	MaxConcurrent int    `mapstructure:"max-concurrent"`
	MaxLogLength  int    `mapstructure:"max-log-length"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "govcon-responder discovers government contract opportunities, scores them against your capability profile and drafts applications",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	envBindings := map[string]string{
		"company.name":             "COMPANY_NAME",
		"company.duns":             "COMPANY_DUNS",
		"company.naics-codes":      "COMPANY_NAICS_CODES",
		"min-score":                "MIN_SCORE",
		"review-mode":              "REVIEW_MODE",
		"auto-submit":              "AUTO_SUBMIT",
		"max-applications-per-day": "MAX_APPLICATIONS_PER_DAY",
		"gemini-api-key":           "GEMINI_API_KEY",
		"sam-gov-api-key":          "SAM_GOV_API_KEY",
	}
	for key, env := range envBindings {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	viper.SetDefault("documents", "./documents")
	viper.SetDefault("output-dir", "./applications")
	viper.SetDefault("min-score", 0.6)
	viper.SetDefault("review-mode", true)
	viper.SetDefault("auto-submit", false)
	viper.SetDefault("max-applications-per-day", 10)
	viper.SetDefault("max-opportunities", 50)
	viper.SetDefault("min-lead-time", "336h")
	viper.SetDefault("workers", 3)
	viper.SetDefault("company.naics-codes", []string{"541511", "541512", "541519", "541690"})
	viper.SetDefault("sources.sam-gov.enabled", true)
	viper.SetDefault("sources.sam-gov.lookback", "168h")
	viper.SetDefault("sources.grants-gov.enabled", true)
	viper.SetDefault("ai.provider", "gemini")

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is govcon-responder.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// Secrets and overrides may live in a local .env file. A missing file
	// is fine, the environment is the primary source.
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
		viper.SetConfigType("yaml")
	}

	// The config file is optional: everything has an environment binding
	// or a default. An explicitly passed file must still parse.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	if config == nil {
		config = &Config{}
	}
	if config.Company == nil {
		config.Company = &CompanyConfig{}
	}
	if config.Sources == nil {
		config.Sources = &SourcesConfig{}
	}
	if config.Sources.SamGov == nil {
		config.Sources.SamGov = &SamGovConfig{}
	}
	if config.Sources.GrantsGov == nil {
		config.Sources.GrantsGov = &GrantsGovConfig{}
	}
	if config.AI == nil {
		config.AI = &AIConfig{}
	}
	if config.AI.Gemini == nil {
		config.AI.Gemini = &GeminiConfig{}
	}

	return config, nil
}
