package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/KilimcininKorOglu/pingkit/internal/config"
	"github.com/KilimcininKorOglu/pingkit/internal/logging"
	"github.com/KilimcininKorOglu/pingkit/internal/metrics"
	"github.com/KilimcininKorOglu/pingkit/internal/probe"
	"github.com/KilimcininKorOglu/pingkit/internal/server"
	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	serveListen      string
	servePort        int
	servePreset      string
	serveWeights     []int
	serveDestCode    int
	serveMode        string
	serveWorkers     int
	serveMaxMessages int
	serveMaxConns    int
	serveErrorRate   float64
	serveErrorBurst  int
	serveSeed        int64
	serveMetricsAddr string
	serveByteOrder   string
	serveSwapSum     bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run an unreliable echo server",
	Long: `Run a UDP or TCP echo server that injects faults.

Each inbound message draws a number from 1 to 10 and the policy decides
what happens to it: echo it back uppercased, drop it, or answer with an
ICMP destination or port unreachable error. Sending errors needs raw
socket access.

Presets:
  reliable     always echo
  lossy        echo 1-8, drop 9-10
  icmp-error   echo 1-6, destination unreachable 7-8, port unreachable 9-10

Examples:
  pingkit serve udp --preset lossy
  pingkit serve tcp --weights 6,1,1,2 --mode pool --workers 20
  pingkit serve udp --metrics-addr :9108`,
}

var serveUDPCmd = &cobra.Command{
	Use:   "udp",
	Short: "Run the UDP echo server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd, "udp")
	},
}

var serveTCPCmd = &cobra.Command{
	Use:   "tcp",
	Short: "Run the TCP echo server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd, "tcp")
	},
}

func init() {
	flags := serveCmd.PersistentFlags()
	flags.StringVar(&serveListen, "listen", "", "Listen address")
	flags.IntVarP(&servePort, "port", "p", 0, "Listen port")
	flags.StringVar(&servePreset, "preset", "", "Policy preset: "+strings.Join(server.PresetNames(), ", "))
	flags.IntSliceVar(&serveWeights, "weights", nil, "Custom policy in tenths: echo,drop,dest-unreachable,port-unreachable")
	flags.IntVar(&serveDestCode, "dest-code", -1, "Code sent for destination unreachable (-1 = transport default)")
	flags.Float64Var(&serveErrorRate, "error-rate", 0, "Error packets per second (0 = unlimited)")
	flags.IntVar(&serveErrorBurst, "error-burst", 0, "Error packets allowed at once when rate limited")
	flags.Int64Var(&serveSeed, "seed", 0, "Random seed (0 = from the clock)")
	flags.StringVar(&serveMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	flags.StringVar(&serveByteOrder, "byte-order", "", "ICMP header byte order: big, little")
	flags.BoolVar(&serveSwapSum, "swap-checksum", false, "Compute the checksum in the opposite order and swap it")

	serveTCPCmd.Flags().StringVar(&serveMode, "mode", "", "Connection handling: sequential, pool")
	serveTCPCmd.Flags().IntVar(&serveWorkers, "workers", 0, "Connections served at once in pool mode")
	serveTCPCmd.Flags().IntVar(&serveMaxMessages, "max-messages", 0, "Lines served per connection")
	serveTCPCmd.Flags().IntVar(&serveMaxConns, "max-connections", 0, "Stop after this many connections (0 = unlimited)")

	serveCmd.AddCommand(serveUDPCmd)
	serveCmd.AddCommand(serveTCPCmd)
}

// applyServerDefaults applies config file values for unset flags.
func applyServerDefaults(cmd *cobra.Command, s config.Server) {
	flags := cmd.Flags()

	if !flags.Changed("listen") {
		serveListen = s.Listen
	}
	if !flags.Changed("port") {
		servePort = s.Port
	}
	if !flags.Changed("preset") {
		servePreset = s.Preset
	}
	if !flags.Changed("weights") && s.Weights != nil {
		serveWeights = []int{s.Weights.Echo, s.Weights.Drop, s.Weights.DestUnreachable, s.Weights.PortUnreachable}
	}
	if !flags.Changed("dest-code") {
		if cmd.Name() == "tcp" {
			serveDestCode = s.TCPDestCode
		} else {
			serveDestCode = s.UDPDestCode
		}
	}
	if !flags.Changed("mode") {
		serveMode = s.Mode
	}
	if !flags.Changed("workers") {
		serveWorkers = s.Workers
	}
	if !flags.Changed("max-messages") {
		serveMaxMessages = s.MaxMessages
	}
	if !flags.Changed("max-connections") {
		serveMaxConns = s.MaxConnections
	}
	if !flags.Changed("error-rate") {
		serveErrorRate = s.ErrorRate
	}
	if !flags.Changed("error-burst") {
		serveErrorBurst = s.ErrorBurst
	}
	if !flags.Changed("seed") {
		serveSeed = s.Seed
	}
	if !flags.Changed("metrics-addr") {
		serveMetricsAddr = s.MetricsAddr
	}
}

// buildPolicy returns the custom weights when given, the preset otherwise.
func buildPolicy() (server.Policy, error) {
	if len(serveWeights) > 0 {
		if len(serveWeights) != 4 {
			return server.Policy{}, fmt.Errorf("%w: want 4 weights, got %d", server.ErrInvalidWeights, len(serveWeights))
		}
		return server.PolicyFromWeights(serveWeights[0], serveWeights[1], serveWeights[2], serveWeights[3])
	}
	return server.Preset(servePreset)
}

// echoServer is what the serve command needs from the UDP and TCP servers.
type echoServer interface {
	Listen() error
	Addr() net.Addr
	Serve(ctx context.Context) error
	Close() error
	Stats() server.Stats
}

func newEchoServer(transport string, injector *server.Injector, opts []server.Option) (echoServer, error) {
	addr := net.JoinHostPort(serveListen, strconv.Itoa(servePort))

	switch transport {
	case "udp":
		c := server.DefaultUDPConfig()
		c.Addr = addr
		if serveDestCode >= 0 {
			c.DestCode = serveDestCode
		}
		return server.NewUDPServer(c, injector, opts...)
	case "tcp":
		mode, err := server.ParseMode(serveMode)
		if err != nil {
			return nil, err
		}
		c := server.DefaultTCPConfig()
		c.Addr = addr
		c.Mode = mode
		c.MaxConnections = serveMaxConns
		if serveDestCode >= 0 {
			c.DestCode = serveDestCode
		}
		if serveWorkers > 0 {
			c.Workers = serveWorkers
		}
		if serveMaxMessages > 0 {
			c.MaxMessages = serveMaxMessages
		}
		return server.NewTCPServer(c, injector, opts...)
	default:
		return nil, fmt.Errorf("unknown transport %q", transport)
	}
}

func runServe(cmd *cobra.Command, transport string) error {
	applyServerDefaults(cmd, cfg.Server)

	policy, err := buildPolicy()
	if err != nil {
		return err
	}
	injector, err := server.NewInjector(policy, serveSeed)
	if err != nil {
		return err
	}

	order, err := probe.ParseByteOrder(serveByteOrder)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	m := metrics.NewMetricsWithRegistry(reg)

	emitterConfig := server.DefaultEmitterConfig()
	emitterConfig.Codec = probe.Codec{Order: order, SwapChecksum: serveSwapSum}
	emitterConfig.Rate = serveErrorRate
	emitterConfig.Burst = serveErrorBurst

	srv, err := newEchoServer(transport, injector, []server.Option{
		server.WithLogger(logger),
		server.WithMetrics(m),
		server.WithEmitter(server.NewRawEmitter(emitterConfig, logger, m)),
	})
	if err != nil {
		return err
	}
	if err := srv.Listen(); err != nil {
		return err
	}

	logger.Info("echo server listening",
		logging.KeyTransport, transport,
		logging.KeyLocalAddr, srv.Addr().String(),
		"policy", policy.String())

	sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// A server that stops on its own takes the metrics endpoint down too.
		defer cancel()
		return srv.Serve(ctx)
	})

	if serveMetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		httpServer := &http.Server{
			Addr:              serveMetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		g.Go(func() error {
			logger.Info("metrics listening", logging.KeyLocalAddr, serveMetricsAddr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()

	printServeStats(os.Stdout, transport, srv.Stats())
	return err
}

func printServeStats(w io.Writer, transport string, st server.Stats) {
	fmt.Fprintf(w, "\n%s echo server statistics:\n", strings.ToUpper(transport))
	fmt.Fprintf(w, "     Messages: %s (%s received, %s echoed)\n",
		humanize.Comma(st.Messages),
		humanize.Bytes(uint64(st.BytesReceived)),
		humanize.Bytes(uint64(st.BytesEchoed)))
	if transport == "tcp" {
		fmt.Fprintf(w, "     Connections: %s\n", humanize.Comma(st.Connections))
	}
	for _, a := range server.Actions {
		fmt.Fprintf(w, "     %-17s %s\n", a.String()+":", humanize.Comma(st.Actions[a]))
	}
	if st.EmitFailures > 0 {
		fmt.Fprintf(w, "     Unsent errors: %s\n", humanize.Comma(st.EmitFailures))
	}
}
