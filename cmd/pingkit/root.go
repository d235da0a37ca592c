package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/KilimcininKorOglu/pingkit/internal/config"
	"github.com/KilimcininKorOglu/pingkit/internal/logging"
	"github.com/KilimcininKorOglu/pingkit/internal/output"
	"github.com/KilimcininKorOglu/pingkit/internal/probe"
	"github.com/KilimcininKorOglu/pingkit/internal/resolve"
	"github.com/KilimcininKorOglu/pingkit/internal/session"
	"github.com/KilimcininKorOglu/pingkit/internal/tui"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// Probe flags
	method       string
	probeCount   int
	timeout      time.Duration
	interval     time.Duration
	errorTimeout time.Duration
	destPort     int
	ttl          int
	icmpErrors   bool
	unprivileged bool
	byteOrder    string
	swapChecksum bool

	// Output flags
	verbose    bool
	jsonOutput bool
	csvOutput  bool
	htmlOutput string
	tuiMode    bool
	noColor    bool
	rdns       bool
	noPrompt   bool

	// Global flags
	cfgFile   string
	logLevel  string
	logFormat string

	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "pingkit [flags] <target>",
	Short: "ICMP, UDP and TCP ping toolkit",
	Long: `pingkit - measure round-trip time and loss to a host

pingkit sends a fixed number of probes to a target, one at a time, and
reports a line per probe followed by loss and round-trip statistics.
Probes are native ICMP echo requests or text messages to a pingkit echo
server over UDP or TCP, optionally watching for ICMP errors on a raw
socket.

Examples:
  pingkit 192.0.2.7                   ICMP echo (needs raw socket access)
  pingkit --unprivileged 192.0.2.7    ICMP over a datagram ping socket
  pingkit -m udp lab                  UDP probes to the echo server
  pingkit -m tcp --icmp-errors lab    TCP probes, watch for ICMP errors
  pingkit --json -c 10 lab            JSON output
  pingkit --tui lab                   Interactive TUI mode
  pingkit serve udp --preset lossy    Run an unreliable UDP echo server
  pingkit                             Interactive mode (prompts for target)`,
	Args:              cobra.MaximumNArgs(1),
	PersistentPreRunE: loadConfig,
	RunE:              runPing,
	SilenceUsage:      true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: ~/.config/pingkit/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: text, json")

	// Probe parameters
	rootCmd.Flags().StringVarP(&method, "method", "m", "", "Probe method: icmp, udp, tcp")
	rootCmd.Flags().IntVarP(&probeCount, "count", "c", 0, "Number of probes to send")
	rootCmd.Flags().DurationVarP(&timeout, "timeout", "w", 0, "Per-probe timeout")
	rootCmd.Flags().DurationVarP(&interval, "interval", "i", 0, "Pause between probes")
	rootCmd.Flags().IntVarP(&destPort, "port", "p", 0, "Echo server port (UDP/TCP)")
	rootCmd.Flags().IntVar(&ttl, "ttl", 0, "TTL of outgoing probes (0 = system default)")

	// ICMP handling
	rootCmd.Flags().BoolVar(&icmpErrors, "icmp-errors", false, "Watch for ICMP errors on a raw socket (UDP/TCP)")
	rootCmd.Flags().DurationVar(&errorTimeout, "error-timeout", 0, "How long to wait for an ICMP error after a timeout")
	rootCmd.Flags().BoolVar(&unprivileged, "unprivileged", false, "Use a datagram ICMP socket instead of a raw one")
	rootCmd.Flags().StringVar(&byteOrder, "byte-order", "", "ICMP header byte order: big, little")
	rootCmd.Flags().BoolVar(&swapChecksum, "swap-checksum", false, "Compute the checksum in the opposite order and swap it")

	// Output flags
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show detailed table output")
	rootCmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output in JSON format")
	rootCmd.Flags().BoolVar(&csvOutput, "csv", false, "Output in CSV format")
	rootCmd.Flags().StringVar(&htmlOutput, "html", "", "Generate HTML report to file")
	rootCmd.Flags().BoolVarP(&tuiMode, "tui", "t", false, "Interactive TUI mode")
	rootCmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.Flags().BoolVar(&rdns, "rdns", false, "Look up the target's reverse DNS name")
	rootCmd.Flags().BoolVar(&noPrompt, "no-prompt", false, "Never prompt for the probe count")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(serveCmd)
}

// loadConfig loads the config file and sets up logging. A missing file
// is not an error; built-in defaults apply.
func loadConfig(cmd *cobra.Command, args []string) error {
	var err error

	if cfgFile != "" {
		cfg, err = config.LoadFrom(cfgFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if !cmd.Flags().Changed("log-level") {
		logLevel = cfg.Log.Level
	}
	if !cmd.Flags().Changed("log-format") {
		logFormat = cfg.Log.Format
	}
	if !logging.ValidLevel(logLevel) {
		return fmt.Errorf("invalid log level %q", logLevel)
	}
	if !logging.ValidFormat(logFormat) {
		return fmt.Errorf("invalid log format %q", logFormat)
	}
	logger = logging.NewLogger(logLevel, logFormat)

	return nil
}

// applyClientDefaults applies config file values for unset flags.
func applyClientDefaults(cmd *cobra.Command, c config.Client) {
	flags := cmd.Flags()

	if !flags.Changed("method") {
		method = c.Method
	}
	if !flags.Changed("count") {
		probeCount = c.Count
	}
	if !flags.Changed("timeout") {
		timeout = c.Timeout
	}
	if !flags.Changed("interval") {
		interval = c.Interval
	}
	if !flags.Changed("error-timeout") {
		errorTimeout = c.ErrorTimeout
	}
	if !flags.Changed("port") {
		destPort = c.Port
	}
	if !flags.Changed("ttl") {
		ttl = c.TTL
	}
	if !flags.Changed("icmp-errors") && c.ICMPErrors {
		icmpErrors = true
	}
	if !flags.Changed("unprivileged") && c.Unprivileged {
		unprivileged = true
	}
	if !flags.Changed("byte-order") {
		byteOrder = c.ByteOrder
	}
	if !flags.Changed("swap-checksum") && c.SwapChecksum {
		swapChecksum = true
	}

	// Output mode from config
	if !flags.Changed("tui") && c.TUI {
		tuiMode = true
	}
	if !flags.Changed("verbose") && c.Verbose {
		verbose = true
	}
	if !flags.Changed("json") && c.JSON {
		jsonOutput = true
	}
	if !flags.Changed("csv") && c.CSV {
		csvOutput = true
	}
	if !flags.Changed("no-color") && c.NoColor {
		noColor = true
	}
	if !flags.Changed("rdns") && c.RDNS {
		rdns = true
	}
}

// buildSessionConfig turns the resolved flag values into a session config.
func buildSessionConfig() (*session.Config, error) {
	m, err := probe.ParseMethod(method)
	if err != nil {
		return nil, err
	}
	order, err := probe.ParseByteOrder(byteOrder)
	if err != nil {
		return nil, err
	}

	c := session.DefaultConfig()
	c.Method = m
	c.Count = probeCount
	c.Timeout = timeout
	c.Interval = interval
	c.Port = destPort
	c.TTL = ttl
	c.ErrorWatch = icmpErrors
	c.ErrorTimeout = errorTimeout
	c.Unprivileged = unprivileged
	c.Codec = probe.Codec{Order: order, SwapChecksum: swapChecksum}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func runPing(cmd *cobra.Command, args []string) error {
	applyClientDefaults(cmd, cfg.Client)

	interactive := !noPrompt && !jsonOutput && !csvOutput && output.IsTerminal(os.Stdin)

	var target string
	if len(args) == 0 {
		if !interactive {
			return errors.New("a target is required")
		}
		var err error
		target, err = promptForTarget(cfg.Aliases)
		if err != nil {
			return err
		}
	} else {
		target = args[0]
	}

	if interactive && !cmd.Flags().Changed("count") {
		n, err := promptForCount(probeCount)
		if err != nil {
			return err
		}
		probeCount = n
	}

	sessionConfig, err := buildSessionConfig()
	if err != nil {
		return err
	}

	resolverConfig := resolve.DefaultConfig()
	resolverConfig.Aliases = cfg.Aliases
	resolver := resolve.New(resolverConfig)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []session.Option{
		session.WithLogger(logger),
		session.WithResolver(resolver),
	}

	outputConfig := output.Config{
		Colors:     !noColor,
		NoHostname: !rdns,
	}
	if noColor {
		color.NoColor = true
	}

	if tuiMode {
		result, err := tui.Run(target, sessionConfig, opts...)
		if err != nil {
			return permissionHint(err)
		}
		return writeHTML(result, outputConfig)
	}

	// Resolve up front so the header can be printed before the first probe.
	dest, err := resolver.Resolve(ctx, target)
	if err != nil {
		return fmt.Errorf("%w: %v", session.ErrTargetResolution, err)
	}

	writer := output.NewWriter(outputFormat(), outputConfig)
	sessionConfig.OnProbe = writer.Probe
	if err := writer.Begin(target, dest, sessionConfig.Method.String()); err != nil {
		return err
	}

	s, err := session.New(sessionConfig, opts...)
	if err != nil {
		return err
	}

	result, runErr := s.Run(ctx, dest.String())
	if result == nil {
		return permissionHint(runErr)
	}
	result.Target = target
	if rdns {
		s.Lookup(context.Background(), result)
	}

	// A cancelled session still reports what it measured.
	if err := writer.Finish(result); err != nil {
		return err
	}

	if err := writeHTML(result, outputConfig); err != nil {
		return err
	}

	if runErr != nil && ctx.Err() == nil {
		return permissionHint(runErr)
	}
	return nil
}

func outputFormat() output.Format {
	switch {
	case jsonOutput:
		return output.FormatJSON
	case csvOutput:
		return output.FormatCSV
	case verbose:
		return output.FormatVerbose
	default:
		return output.FormatText
	}
}

func writeHTML(result *session.Result, outputConfig output.Config) error {
	if htmlOutput == "" || result == nil {
		return nil
	}
	htmlFormatter := output.NewHTMLFormatter(outputConfig)
	if err := output.WriteToFile(result, htmlOutput, htmlFormatter); err != nil {
		return fmt.Errorf("failed to write HTML report: %w", err)
	}
	fmt.Fprintf(os.Stderr, "\nHTML report saved to: %s\n", htmlOutput)
	return nil
}

// permissionHint adds advice to raw socket permission failures.
func permissionHint(err error) error {
	if err == nil || !probe.IsPermissionError(err) {
		return err
	}
	return fmt.Errorf("%w\n\nRun as root, grant CAP_NET_RAW, or use --unprivileged for ICMP", err)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("pingkit %s\n", version)
		fmt.Printf("  Commit: %s\n", commit)
		fmt.Printf("  Built:  %s\n", date)
		fmt.Printf("  Config: %s\n", config.GetConfigPath())
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show configuration",
	Long: `Show the pingkit configuration file.

pingkit only reads its configuration file. Save the example to the path
shown by --path to change the defaults.

Commands:
  pingkit config --show     Show an example configuration
  pingkit config --path     Show the config file in use`,
	RunE: runConfig,
}

var (
	configShow bool
	configPath bool
)

func init() {
	configCmd.Flags().BoolVar(&configShow, "show", false, "Show an example configuration")
	configCmd.Flags().BoolVar(&configPath, "path", false, "Show config file path")
}

func runConfig(cmd *cobra.Command, args []string) error {
	if configPath {
		switch {
		case cfgFile != "":
			fmt.Println(cfgFile)
		case config.Found() != "":
			fmt.Println(config.Found())
		default:
			fmt.Println(config.GetConfigPath())
		}
		return nil
	}

	if configShow {
		fmt.Println(config.GenerateExample())
		return nil
	}

	return cmd.Help()
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets version information for the CLI.
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
}
