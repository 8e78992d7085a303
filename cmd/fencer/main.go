// Package main is the entry point for the fencer CLI
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/su1ph3r/fencer/internal/fuzzer"
	"github.com/su1ph3r/fencer/internal/logging"
	"github.com/su1ph3r/fencer/internal/metrics"
	"github.com/su1ph3r/fencer/internal/parser"
	"github.com/su1ph3r/fencer/internal/payloads"
	"github.com/su1ph3r/fencer/internal/reporter"
	"github.com/su1ph3r/fencer/internal/sqli"
	"github.com/su1ph3r/fencer/pkg/types"
)

// Exit codes
const (
	exitVulnerable = 1
	exitSetup      = 2
)

// errVulnerable marks a completed scan that recorded at least one FAIL
var errVulnerable = errors.New("sql injection failures detected")

var (
	version = "1.0.0"
	cfgFile string
	config  *types.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, errVulnerable) {
			os.Exit(exitVulnerable)
		}
		printError("%v", err)
		os.Exit(exitSetup)
	}
}

var rootCmd = &cobra.Command{
	Use:   "fencer",
	Short: "fencer - SQL injection prober for OpenAPI-described APIs",
	Long: `fencer reads an OpenAPI or Swagger document and, for every endpoint,
sends variants of its query parameters, path parameters and JSON request
bodies carrying SQL injection strings. Any response with a 5xx status, and
any request that fails outright, is reported as a failure.

The process exits with status 1 when a failure was recorded.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Probe an API for SQL injection",
	Long:  `Run the query, path and body sweeps against the live API described by --spec`,
	RunE:  runScan,
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "List every request a scan would send",
	Long:  `Generate all injection requests without sending any of them`,
	RunE:  runPlan,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `View and modify fencer configuration settings`,
}

var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		viper.Set(args[0], args[1])
		if err := viper.WriteConfig(); err != nil {
			return viper.SafeWriteConfig()
		}
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Get a configuration value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(viper.Get(args[0]))
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show all configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		for k, v := range viper.AllSettings() {
			fmt.Printf("%s: %v\n", k, v)
		}
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the loaded configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := types.ValidateConfig(config); err != nil {
			return err
		}
		printSuccess("Configuration is valid")
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.fencer.yaml)")
	rootCmd.PersistentFlags().Bool("no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().String("log-level", "", "Diagnostic log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "Diagnostic log format (console, json)")

	for _, cmd := range []*cobra.Command{scanCmd, planCmd} {
		cmd.Flags().StringP("spec", "s", "", "OpenAPI/Swagger specification file")
		cmd.Flags().StringP("base-url", "u", "", "Override the base URL declared by the specification")
		cmd.Flags().StringSlice("sweeps", []string{}, "Sweeps to run: query, path, body (empty = all)")
		cmd.Flags().String("catalog", "", "YAML file replacing the built-in injection strings")
		cmd.Flags().Uint64("seed", 0, "Seed for reproducible payload generation (0 = random)")
		cmd.Flags().StringP("format", "f", "", "Output format (text, json, yaml)")
		cmd.Flags().StringP("output", "o", "", "Output file path (stdout if not specified)")
		cmd.Flags().StringToString("headers", map[string]string{}, "Additional headers")
		cmd.Flags().StringToString("cookies", map[string]string{}, "Cookies sent with every request")
		cmd.Flags().String("auth-header", "", "Authorization header (e.g., 'Bearer xxx')")
		_ = cmd.MarkFlagRequired("spec")
	}

	scanCmd.Flags().Bool("verbose", false, "Verbose output")
	scanCmd.Flags().String("proxy", "", "HTTP proxy URL")
	scanCmd.Flags().Int("concurrency", 0, "Endpoints probed in parallel")
	scanCmd.Flags().Float64("rate-limit", 0, "Requests per second (0 = unlimited)")
	scanCmd.Flags().Duration("timeout", 0, "Request timeout")
	scanCmd.Flags().Bool("no-ssl-verify", false, "Skip SSL certificate verification")
	scanCmd.Flags().String("request-log", "", "Write every probe to a JSON file")
	scanCmd.Flags().Bool("metrics", false, "Expose Prometheus metrics while scanning")
	scanCmd.Flags().String("metrics-listen", "", "Metrics listen address")

	// Add commands
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigName(".fencer")
		viper.SetConfigType("yaml")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("FENCER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	if err := viper.ReadInConfig(); err != nil && cfgFile != "" {
		printWarning("Could not read config %s: %v", cfgFile, err)
	}

	config = types.DefaultConfig()
	if err := viper.Unmarshal(config); err != nil {
		printWarning("Invalid configuration: %v (using defaults)", err)
		config = types.DefaultConfig()
	}
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupts
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		printWarning("\nInterrupted, shutting down...")
		cancel()
	}()

	updateConfigFromFlags(cmd)
	if err := types.ValidateConfig(config); err != nil {
		return err
	}

	logger, err := logging.New(config.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	printBanner()

	inputFile, _ := cmd.Flags().GetString("spec")
	endpoints, catalog, err := loadInputs(cmd, inputFile)
	if err != nil {
		return err
	}
	printInfo("Parsed %d endpoints from %s", len(endpoints), inputFile)
	printInfo("Using %d injection strings", catalog.Len())

	collector, err := metrics.New()
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}
	if config.Metrics.Enabled {
		go func() {
			if err := collector.Serve(ctx, config.Metrics.Listen, config.Metrics.Path); err != nil {
				logger.Warnw("metrics server stopped", "error", err)
			}
		}()
		printInfo("Serving metrics on %s%s", config.Metrics.Listen, config.Metrics.Path)
	}

	var reqLog *fuzzer.RequestLogger
	if config.Output.RequestLog != "" {
		reqLog, err = fuzzer.NewRequestLogger(config.Output.RequestLog)
		if err != nil {
			return err
		}
		defer func() {
			if err := reqLog.Close(); err != nil {
				printWarning("Failed to write request log: %v", err)
			}
		}()
	}

	limiter := fuzzer.NewRateLimiter(config.Scan.RateLimit)
	if limiter.Enabled() {
		logger.Infow("Rate limiting requests", "per_second", config.Scan.RateLimit)
	}

	executor := fuzzer.NewExecutor(
		fuzzer.NewHTTPClient(*config),
		config.HTTP,
		fuzzer.WithRateLimiter(limiter),
		fuzzer.WithRequestLogger(reqLog),
		fuzzer.WithMetrics(collector),
		fuzzer.WithLogger(logger),
	)

	runner := newRunner(endpoints, executor, catalog, logger,
		sqli.WithProgress(reporter.NewConsoleProgress(os.Stdout, config.Output.Verbose, !config.Output.Color)),
		sqli.WithMetrics(collector),
	)

	printInfo("Starting scan...")
	result, runErr := runner.RunAll(ctx, config.Scan.EnabledSweeps())
	if result == nil {
		return runErr
	}
	result.Config = scanConfig(inputFile, catalog)
	logger.Infow("Scan finished",
		"scan_id", result.ScanID,
		"injection_tests", runner.Probes(),
		"failures", result.TotalFailures,
		"interrupted", runErr != nil,
	)

	if err := writeReport(result); err != nil {
		return err
	}

	if result.Failed() {
		printError("%d of %d injection tests failed", result.TotalFailures, result.TotalProbes)
		return errVulnerable
	}
	if runErr != nil {
		return runErr
	}
	printSuccess("%d injection tests, no failures", result.TotalProbes)
	return nil
}

func runPlan(cmd *cobra.Command, args []string) error {
	updateConfigFromFlags(cmd)
	if err := types.ValidateConfig(config); err != nil {
		return err
	}

	logger, err := logging.New(config.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	inputFile, _ := cmd.Flags().GetString("spec")
	endpoints, catalog, err := loadInputs(cmd, inputFile)
	if err != nil {
		return err
	}

	sim := fuzzer.NewDryRunSimulator()
	runner := newRunner(endpoints, sim, catalog, logger)
	result, err := runner.RunAll(context.Background(), config.Scan.EnabledSweeps())
	if err != nil {
		return err
	}
	if n := result.GenerationErrors(); n > 0 {
		color.New(color.FgYellow).Fprintf(os.Stderr, "[!] %d requests could not be generated\n", n)
	}

	out := os.Stdout
	if config.Output.File != "" {
		f, err := os.Create(config.Output.File)
		if err != nil {
			return fmt.Errorf("failed to create file: %w", err)
		}
		defer f.Close()
		out = f
	}
	return reporter.WritePlan(out, sim, config.Output.Format)
}

// loadInputs parses the OpenAPI document and the injection catalog
func loadInputs(cmd *cobra.Command, inputFile string) ([]types.Endpoint, *payloads.Catalog, error) {
	if err := types.ValidateInputFile(inputFile); err != nil {
		return nil, nil, err
	}

	baseURL, _ := cmd.Flags().GetString("base-url")
	if baseURL != "" {
		if err := types.ValidateURL(baseURL); err != nil {
			return nil, nil, fmt.Errorf("invalid --base-url: %w", err)
		}
	}

	endpoints, err := parser.ParseFile(inputFile, baseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse input: %w", err)
	}

	catalog := payloads.DefaultSQLi()
	if config.Attacks.CatalogFile != "" {
		catalog, err = payloads.LoadCatalog(config.Attacks.CatalogFile)
		if err != nil {
			return nil, nil, err
		}
	}

	return endpoints, catalog, nil
}

func newRunner(endpoints []types.Endpoint, prober sqli.Prober, catalog *payloads.Catalog, logger *zap.SugaredLogger, opts ...sqli.Option) *sqli.Runner {
	opts = append([]sqli.Option{
		sqli.WithSeed(config.Scan.Seed),
		sqli.WithConcurrency(config.Scan.Concurrency),
		sqli.WithLogger(logger),
	}, opts...)
	return sqli.NewRunner(endpoints, prober, catalog, opts...)
}

func writeReport(result *types.ScanResult) error {
	opts := reporter.DefaultOptions()
	opts.Version = version
	opts.Verbose = config.Output.Verbose
	opts.NoColor = !config.Output.Color
	opts.Curl = reporter.CurlOptions{
		IncludeInsecure: !config.Scan.VerifySSL,
		ProxyURL:        config.HTTP.ProxyURL,
		Headers:         fuzzer.NewSession(config.HTTP).Headers(),
	}

	rep, err := reporter.NewReporter(config.Output.Format, opts)
	if err != nil {
		return fmt.Errorf("failed to create reporter: %w", err)
	}

	if config.Output.File == "" {
		fmt.Println()
		if err := rep.Write(result, os.Stdout); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		return nil
	}

	outputPath := config.Output.File
	if !strings.HasSuffix(outputPath, "."+rep.Extension()) {
		outputPath = outputPath + "." + rep.Extension()
	}
	if err := reporter.WriteToFile(rep, result, outputPath); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	printSuccess("Report saved to: %s", outputPath)
	return nil
}

func updateConfigFromFlags(cmd *cobra.Command) {
	flags := cmd.Flags()

	if v, _ := flags.GetBool("no-color"); v {
		config.Output.Color = false
	}
	if v, _ := flags.GetString("log-level"); v != "" {
		config.Log.Level = v
	}
	if v, _ := flags.GetString("log-format"); v != "" {
		config.Log.Format = v
	}
	if v, _ := flags.GetStringSlice("sweeps"); len(v) > 0 {
		config.Scan.Sweeps = v
	}
	if v, _ := flags.GetString("catalog"); v != "" {
		config.Attacks.CatalogFile = v
	}
	if flags.Changed("seed") {
		config.Scan.Seed, _ = flags.GetUint64("seed")
	}
	if v, _ := flags.GetString("format"); v != "" {
		config.Output.Format = v
	}
	if v, _ := flags.GetString("output"); v != "" {
		config.Output.File = v
	}
	if v, _ := flags.GetString("auth-header"); v != "" {
		config.HTTP.AuthHeader = v
	}
	if config.HTTP.Headers == nil {
		config.HTTP.Headers = make(map[string]string)
	}
	if v, _ := flags.GetStringToString("headers"); len(v) > 0 {
		for k, val := range v {
			config.HTTP.Headers[k] = val
		}
	}
	if config.HTTP.Cookies == nil {
		config.HTTP.Cookies = make(map[string]string)
	}
	if v, _ := flags.GetStringToString("cookies"); len(v) > 0 {
		for k, val := range v {
			config.HTTP.Cookies[k] = val
		}
	}

	// scan-only flags are absent on plan and read as zero values
	if v, _ := flags.GetBool("verbose"); v {
		config.Output.Verbose = true
	}
	if v, _ := flags.GetString("proxy"); v != "" {
		config.HTTP.ProxyURL = v
	}
	if v, _ := flags.GetInt("concurrency"); v > 0 {
		config.Scan.Concurrency = v
	}
	if v, _ := flags.GetFloat64("rate-limit"); v > 0 {
		config.Scan.RateLimit = v
	}
	if v, _ := flags.GetDuration("timeout"); v > 0 {
		config.Scan.Timeout = v
	}
	if v, _ := flags.GetBool("no-ssl-verify"); v {
		config.Scan.VerifySSL = false
	}
	if v, _ := flags.GetString("request-log"); v != "" {
		config.Output.RequestLog = v
	}
	if v, _ := flags.GetBool("metrics"); v {
		config.Metrics.Enabled = true
	}
	if v, _ := flags.GetString("metrics-listen"); v != "" {
		config.Metrics.Listen = v
	}

	if !config.Output.Color {
		color.NoColor = true
	}
}

func scanConfig(inputFile string, catalog *payloads.Catalog) *types.ScanConfig {
	sweeps := make([]string, 0, len(config.Scan.EnabledSweeps()))
	for _, s := range config.Scan.EnabledSweeps() {
		sweeps = append(sweeps, string(s))
	}
	return &types.ScanConfig{
		InputFile:   inputFile,
		Sweeps:      sweeps,
		Concurrency: config.Scan.Concurrency,
		RateLimit:   config.Scan.RateLimit,
		Timeout:     int(config.Scan.Timeout / time.Second),
		Seed:        config.Scan.Seed,
		Catalog:     catalog.Len(),
	}
}

// Printing functions

func printBanner() {
	banner := `
   ____
  / __/__ ___  _______ ____
 / _// -_) _ \/ __/ -_) __/
/_/  \__/_//_/\__/\__/_/
SQL Injection Prober v%s
`
	fmt.Printf(banner, version)
	fmt.Println()
}

func printInfo(format string, args ...interface{}) {
	color.Cyan("[*] "+format, args...)
}

func printSuccess(format string, args ...interface{}) {
	color.Green("[+] "+format, args...)
}

func printWarning(format string, args ...interface{}) {
	color.Yellow("[!] "+format, args...)
}

func printError(format string, args ...interface{}) {
	color.Red("[-] "+format, args...)
}
