// Package cmd provides the command-line interface for OrgScrape.
// It handles command parsing, configuration loading, and batch execution.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/masahif/orgscrape/internal/batch"
	"github.com/masahif/orgscrape/internal/config"
)

const envPrefix = "ORGSCRAPE"

var (
	cfgFile   string
	version   string
	buildTime string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "orgscrape",
	Short: "Collect keyword-relevant pages and PDFs from organization websites",
	Long: `OrgScrape crawls the website of every organization listed in a CSV table.

For each organization it walks the site breadth-first within page and depth
budgets, honours robots.txt, saves pages whose text matches the page keywords
and downloads linked PDFs whose link matches the PDF keywords. Every decision
is appended to <out>/<organization>/meta.jsonl.`,
	Args:          cobra.NoArgs,
	RunE:          runBatch,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI until completion or until the process is interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// SetVersionInfo sets version information for the CLI
func SetVersionInfo(v, bt string) {
	version = v
	buildTime = bt
	rootCmd.Version = fmt.Sprintf("%s (built %s)", version, buildTime)
}

func init() {
	cobra.OnInitialize(initConfig)

	defaults := config.DefaultConfig()

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./orgscrape.yml or $XDG_CONFIG_HOME/orgscrape/orgscrape.yml)")
	rootCmd.PersistentFlags().Bool("show-config", false, "Display current configuration in YAML format and exit")

	// Input table, batch only
	rootCmd.Flags().String("csv", "", "CSV with columns Organization,Website")

	// Output
	rootCmd.PersistentFlags().StringP("out", "o", "", "Output directory")
	rootCmd.PersistentFlags().StringP("patterns", "p", defaults.PatternsPath, "Keyword pattern file (JSON or YAML)")
	rootCmd.PersistentFlags().StringP("database", "d", "", "SQLite event index (default <out>/index.db)")
	rootCmd.PersistentFlags().String("metrics-file", "", "Prometheus textfile written at the end (default <out>/metrics.prom)")

	// Crawl budgets
	rootCmd.PersistentFlags().Int("max-pages", defaults.MaxPages, "Pages visited per organization")
	rootCmd.PersistentFlags().Int("max-depth", defaults.MaxDepth, "Link depth followed from the seed")
	rootCmd.PersistentFlags().Float64P("delay", "r", defaults.Delay, "Seconds to wait before every fetch (minimum 0.1)")
	rootCmd.PersistentFlags().String("max-pdf-size", defaults.MaxPDFSize, "Largest PDF downloaded, e.g. 80MiB")

	// HTTP
	rootCmd.PersistentFlags().StringP("user-agent", "u", defaults.UserAgent, "HTTP User-Agent header")
	rootCmd.PersistentFlags().Duration("page-timeout", defaults.PageTimeout, "Timeout for a whole page request")
	rootCmd.PersistentFlags().Duration("attachment-timeout", defaults.AttachmentTimeout, "Idle timeout while downloading a PDF")

	// Execution
	rootCmd.PersistentFlags().IntP("concurrency", "c", defaults.Concurrency, "Organizations crawled in parallel")

	// Logging
	rootCmd.PersistentFlags().String("log-level", defaults.LogLevel, "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-file", "", "Also write logs to this file, rotated by size")
	rootCmd.PersistentFlags().String("log-format", defaults.LogFormat, "Log format: json or text")

	bindFlags := []struct {
		viperKey string
		flagName string
	}{
		{"input", "csv"},
		{"output_dir", "out"},
		{"patterns", "patterns"},
		{"database_path", "database"},
		{"metrics_path", "metrics-file"},
		{"max_pages", "max-pages"},
		{"max_depth", "max-depth"},
		{"delay", "delay"},
		{"max_pdf_size", "max-pdf-size"},
		{"user_agent", "user-agent"},
		{"page_timeout", "page-timeout"},
		{"attachment_timeout", "attachment-timeout"},
		{"concurrency", "concurrency"},
		{"log_level", "log-level"},
		{"log_file", "log-file"},
		{"log_format", "log-format"},
	}

	for _, bind := range bindFlags {
		flag := rootCmd.Flags().Lookup(bind.flagName)
		if flag == nil {
			flag = rootCmd.PersistentFlags().Lookup(bind.flagName)
		}
		if err := viper.BindPFlag(bind.viperKey, flag); err != nil {
			// Log the error but continue - non-critical for operation
			fmt.Fprintf(os.Stderr, "Warning: failed to bind flag %s: %v\n", bind.flagName, err)
		}
	}

	rootCmd.AddCommand(siteCmd, summaryCmd)
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath(filepath.Join(xdg.ConfigHome, "orgscrape"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("orgscrape")
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// loadConfig merges defaults, config file, environment and flags.
func loadConfig() (*config.CrawlConfig, error) {
	cfg := config.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.UserAgent == config.DefaultConfig().UserAgent {
		cfg.UserAgent = generateUserAgent()
	}
	return cfg, nil
}

func generateUserAgent() string {
	if version != "" && version != "dev" {
		return fmt.Sprintf("OrgScrape/%s (+https://github.com/masahif/orgscrape)", version)
	}
	return config.DefaultConfig().UserAgent
}

func showCurrentConfig(cmd *cobra.Command, cfg *config.CrawlConfig) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Configuration validation failed: %v\n", err)
		fmt.Fprintf(os.Stderr, "Displaying configuration anyway...\n\n")
	}

	yamlData, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration to YAML: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "# Current OrgScrape Configuration\n")
	fmt.Fprintf(out, "# Generated at: %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(out, "# Configuration file search paths: ./orgscrape.yml, %s\n", filepath.Join(xdg.ConfigHome, "orgscrape", "orgscrape.yml"))
	fmt.Fprintf(out, "# Environment variables prefix: %s_\n\n", envPrefix)

	fmt.Fprint(out, string(yamlData))

	fmt.Fprintf(out, "\n# Configuration source priority:\n")
	fmt.Fprintf(out, "# 1. Command-line arguments (highest priority)\n")
	fmt.Fprintf(out, "# 2. Environment variables (%s_ prefix)\n", envPrefix)
	fmt.Fprintf(out, "# 3. Configuration file (orgscrape.yml)\n")
	fmt.Fprintf(out, "# 4. Default values (lowest priority)\n")

	return nil
}

func runBatch(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if showConfig, _ := cmd.Flags().GetBool("show-config"); showConfig {
		return showCurrentConfig(cmd, cfg)
	}

	if cfg.InputPath == "" {
		return errors.New("--csv is required")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Configuration failures abort before any organization is crawled
	rows, err := batch.ReadTable(cfg.InputPath)
	if err != nil {
		return err
	}

	env, err := newEnvironment(cfg)
	if err != nil {
		return err
	}
	defer env.Close()

	env.logger.Info("Starting OrgScrape",
		"version", version,
		"input", cfg.InputPath,
		"organizations", len(rows),
		"output_dir", cfg.OutputDir,
		"max_pages", cfg.MaxPages,
		"max_depth", cfg.MaxDepth,
		"delay", cfg.FetchDelay(),
		"concurrency", cfg.Concurrency)

	sum, runErr := env.runner.Run(cmd.Context(), rows)
	env.writeMetrics()

	printSummary(cmd, sum)
	if runErr != nil {
		return fmt.Errorf("batch interrupted: %w", runErr)
	}
	return nil
}

func printSummary(cmd *cobra.Command, sum batch.Summary) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Organizations: %d (completed %d, blocked by robots.txt %d, failed %d)\n",
		sum.Jobs, sum.Completed, sum.Blocked, sum.Failed)
	fmt.Fprintf(out, "Pages saved:   %d\n", sum.PagesSaved)
	fmt.Fprintf(out, "PDFs saved:    %d\n", sum.PDFsSaved)
	fmt.Fprintf(out, "Errors:        %d\n", sum.Errors)
	fmt.Fprintf(out, "Duration:      %s\n", sum.Duration.Round(time.Millisecond))
}
