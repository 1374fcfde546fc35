// Package cli builds the worker's command line. The host starts the worker
// executable with its connection flags; cmd/worker uses this package with a
// plugin loader and applications can embed it with compiled-in assemblies.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Azure/azure-functions-dotnet-worker-sub001/pkg/worker"
	"github.com/Azure/azure-functions-dotnet-worker-sub001/pkg/worker/converters"
	"github.com/Azure/azure-functions-dotnet-worker-sub001/pkg/worker/function"
	"github.com/Azure/azure-functions-dotnet-worker-sub001/pkg/worker/invoke"
)

// Options supplies the application parts of the worker.
type Options struct {
	// Use is the command name shown in help.
	Use string
	// Assemblies are served from the binary ahead of plugins.
	Assemblies []*invoke.Assembly
	// DisablePlugins stops script files from being opened as Go plugins.
	DisablePlugins bool
	Services       function.ServiceProvider
	Converters     *converters.Engine
}

func (o Options) loader() invoke.AssemblyLoader {
	var chain invoke.ChainLoader
	if len(o.Assemblies) > 0 {
		chain = append(chain, invoke.NewStaticLoader(o.Assemblies...))
	}
	if !o.DisablePlugins {
		chain = append(chain, invoke.NewPluginLoader())
	}
	if len(chain) == 1 {
		return chain[0]
	}
	return chain
}

// hostFlags are the flags the Functions host passes on the command line.
// Both the camelCase and the functions-* spellings are accepted.
type hostFlags struct {
	configFile string

	host                 string
	port                 int
	workerID             string
	requestID            string
	grpcMaxMessageLength int

	functionsURI                  string
	functionsWorkerID             string
	functionsRequestID            string
	functionsGRPCMaxMessageLength int

	transport  string
	nngAddress string
	logLevel   string
}

// NewRootCommand returns the worker command. Running it without a
// subcommand connects to the host.
func NewRootCommand(opts Options) *cobra.Command {
	if opts.Use == "" {
		opts.Use = "worker"
	}
	var f hostFlags

	root := &cobra.Command{
		Use:           opts.Use,
		Short:         "Functions language worker for Go",
		Long:          "Connects to the Functions host, loads functions and runs invocations.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.config(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return Run(ctx, cfg, opts)
		},
	}
	// The host may pass flags this worker does not know about.
	root.FParseErrWhitelist.UnknownFlags = true

	fl := root.Flags()
	root.PersistentFlags().StringVar(&f.configFile, "config", "", "Path to a YAML config file")
	fl.StringVar(&f.host, "host", "", "Host address")
	fl.IntVar(&f.port, "port", 0, "Host port")
	fl.StringVar(&f.workerID, "workerId", "", "Worker id assigned by the host")
	fl.StringVar(&f.requestID, "requestId", "", "Start request id")
	fl.IntVar(&f.grpcMaxMessageLength, "grpcMaxMessageLength", 0, "Maximum gRPC message length in bytes")
	fl.StringVar(&f.functionsURI, "functions-uri", "", "Host URI, for example http://127.0.0.1:7071/")
	fl.StringVar(&f.functionsWorkerID, "functions-worker-id", "", "Worker id assigned by the host")
	fl.StringVar(&f.functionsRequestID, "functions-request-id", "", "Start request id")
	fl.IntVar(&f.functionsGRPCMaxMessageLength, "functions-grpc-max-message-length", 0, "Maximum gRPC message length in bytes")
	fl.StringVar(&f.transport, "transport", "", "Host link: grpc or nng")
	fl.StringVar(&f.nngAddress, "nng-address", "", "NNG address of the host, for example ipc:///tmp/host.ipc")
	fl.StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	root.AddCommand(metadataCmd(opts), versionCmd())
	return root
}

// config layers defaults, the config file, the environment and then flags
// the user actually set.
func (f *hostFlags) config(cmd *cobra.Command) (*worker.Config, error) {
	cfg, err := worker.LoadConfig(f.configFile)
	if err != nil {
		return nil, err
	}

	changed := cmd.Flags().Changed
	if changed("functions-uri") {
		if err := cfg.SetFunctionsURI(f.functionsURI); err != nil {
			return nil, err
		}
	}
	if changed("host") {
		cfg.Host = f.host
	}
	if changed("port") {
		cfg.Port = f.port
	}
	switch {
	case changed("functions-worker-id"):
		cfg.WorkerID = f.functionsWorkerID
	case changed("workerId"):
		cfg.WorkerID = f.workerID
	}
	switch {
	case changed("functions-request-id"):
		cfg.RequestID = f.functionsRequestID
	case changed("requestId"):
		cfg.RequestID = f.requestID
	}
	switch {
	case changed("functions-grpc-max-message-length"):
		cfg.GRPCMaxMessageLength = f.functionsGRPCMaxMessageLength
	case changed("grpcMaxMessageLength"):
		cfg.GRPCMaxMessageLength = f.grpcMaxMessageLength
	}
	if changed("transport") {
		cfg.Transport = f.transport
	}
	if changed("nng-address") {
		cfg.NNG.Address = f.nngAddress
	}
	if changed("log-level") {
		cfg.Log.Level = f.logLevel
	}

	if cfg.WorkerID == "" {
		cfg.WorkerID = uuid.NewString()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Run wires the ambient stack around a Worker and serves the host until the
// link closes, the host terminates the worker, or ctx is done.
func Run(ctx context.Context, cfg *worker.Config, opts Options) error {
	logger := worker.NewLoggerFromConfig(cfg.Log)
	worker.SetGlobalLogger(logger)

	shutdownTracing, err := worker.InitTracing(ctx, cfg.Tracing, "functions-worker-go")
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warnf("Tracing shutdown: %v", err)
		}
	}()

	var metrics *worker.Metrics
	if cfg.Metrics.Enabled {
		metrics = worker.NewMetrics(cfg.Metrics.Namespace)
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Listen); err != nil {
				logger.Errorf("Metrics endpoint on %s stopped: %v", cfg.Metrics.Listen, err)
			}
		}()
	}

	ch, err := dial(ctx, cfg)
	if err != nil {
		return err
	}

	w := worker.New(worker.Options{
		WorkerID:       cfg.WorkerID,
		RequestID:      cfg.RequestID,
		Logger:         logger,
		Metrics:        metrics,
		Loader:         opts.loader(),
		Services:       opts.Services,
		Converters:     opts.Converters,
		TerminateGrace: cfg.TerminateGrace,
	})
	logger.Infof("Starting worker %s (transport %s)", cfg.WorkerID, cfg.Transport)
	return w.Run(ctx, ch)
}

func dial(ctx context.Context, cfg *worker.Config) (worker.HostChannel, error) {
	if strings.EqualFold(cfg.Transport, worker.TransportNNG) {
		ch, err := worker.DialNNG(&cfg.NNG)
		if err != nil {
			return nil, fmt.Errorf("connect to host: %w", err)
		}
		return ch, nil
	}
	ch, err := worker.DialGRPC(ctx, cfg.HostAddress(), cfg.GRPCMaxMessageLength)
	if err != nil {
		return nil, fmt.Errorf("connect to host: %w", err)
	}
	return ch, nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the worker version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "functions-worker-go %s\n", worker.Version)
		},
	}
}

// Execute runs the root command and exits non-zero on error.
func Execute(opts Options) {
	if err := NewRootCommand(opts).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
