package cmd

import (
	"context"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spigell/govcon-responder/internal/logger"
	"github.com/spigell/govcon-responder/internal/opportunity"
	"github.com/spigell/govcon-responder/internal/screen"
	"github.com/spigell/govcon-responder/internal/secrets"
	"github.com/spigell/govcon-responder/internal/store"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate configuration, documents and credentials without contacting any source",
	Run: func(cmd *cobra.Command, _ []string) {
		check(cmd)
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func check(cmd *cobra.Command) {
	pass := color.New(color.FgGreen).PrintfFunc()
	warn := color.New(color.FgYellow).PrintfFunc()
	fail := color.New(color.FgRed).PrintfFunc()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		fail("config: %v\n", err)
		os.Exit(1)
	}
	pass("config: parsed\n")

	failed := false

	if config.Company.Name == "" {
		fail("company: name is not set (COMPANY_NAME or company.name)\n")
		failed = true
	} else {
		pass("company: %s, %d naics codes\n", config.Company.Name, len(config.Company.NAICSCodes))
	}

	prof, err := buildProfile(config, logger)
	if err != nil {
		fail("profile: %v\n", err)
		failed = true
	} else {
		pass("profile: version %s, %d capabilities, %d past performance entries\n",
			prof.Version(), len(prof.Capabilities), len(prof.PastPerformance))
	}

	if _, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: viper.GetString("gemini-api-key"),
		File:  config.AI.Gemini.APIKeyFile,
	}); err != nil {
		fail("gemini: %v\n", err)
		failed = true
	} else {
		pass("gemini: api key present\n")
	}

	if !config.Sources.SamGov.Enabled {
		warn("sam.gov: disabled\n")
	} else if _, err := secrets.Load(secrets.Source{
		Name:  "sam.gov api key",
		Value: viper.GetString("sam-gov-api-key"),
		File:  config.Sources.SamGov.APIKeyFile,
	}); err != nil {
		warn("sam.gov: %v, the source will be skipped\n", err)
	} else {
		pass("sam.gov: api key present\n")
	}

	if config.Sources.GrantsGov.Enabled {
		if config.Sources.GrantsGov.Keyword == "" {
			warn("grants.gov: enabled without a keyword, all posted grants will be fetched\n")
		} else {
			pass("grants.gov: enabled, keyword %q\n", config.Sources.GrantsGov.Keyword)
		}
	} else {
		warn("grants.gov: disabled\n")
	}

	registry, err := opportunity.LoadRegistry()
	if err != nil {
		fail("registry: %v\n", err)
		failed = true
	} else {
		pass("registry: %s\n", strings.Join(registry.Sources(), ", "))
	}

	db, err := store.Open(config.StorePath)
	if err != nil {
		fail("store: %v\n", err)
		failed = true
	} else {
		used, err := db.SubmittedToday(context.Background(), time.Now())
		if err != nil {
			fail("store: %v\n", err)
			failed = true
		} else {
			pass("store: open, %d of %d daily submissions used\n", used, config.MaxApplicationsPerDay)
		}
		db.Close()
	}

	for _, status := range screen.Describe([]screen.Screen{screen.NewExpired(), screen.NewHistory(cmd), screen.NewLimit()}) {
		state := "enabled"
		if !status.Enabled {
			state = "disabled: " + status.Reason
		}
		pass("screen %s: %s\n", status.Name, state)
	}

	if failed {
		os.Exit(1)
	}
	pass("all checks passed\n")
}
