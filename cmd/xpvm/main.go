// xpvm runs an XPVM object file: it loads every block into a fresh arena,
// spawns the entry processor with the remaining arguments, joins it and
// reports the result on stderr.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/colorfulnotion/xpvm/config"
	"github.com/colorfulnotion/xpvm/log"
	"github.com/colorfulnotion/xpvm/xpvm"
	"github.com/colorfulnotion/xpvm/xpvm/trace"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildTime = "unknown"
)

type runFlags struct {
	configPath   string
	memory       string
	maxProcs     int
	logLevel     string
	logModules   string
	logFormat    string
	traceJSONL   string
	traceDB      string
	otlpEndpoint string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var f runFlags
	rootCmd := &cobra.Command{
		Use:   "xpvm <object-file> [args...]",
		Short: "Run an XPVM object file",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.config(cmd)
			if err != nil {
				return fail(cmd, err)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			res, err := runObject(ctx, cfg, f.otlpEndpoint, args[0], args[1:], cmd.OutOrStdout())
			if err != nil {
				return fail(cmd, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%s\n", res)
			if res.Status != xpvm.StatusNormal {
				return fmt.Errorf("processor %d exited with status %s", res.Proc, res.Status)
			}
			return nil
		},
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	// Arguments after the object path belong to the program.
	rootCmd.Flags().SetInterspersed(false)

	fl := rootCmd.Flags()
	fl.StringVar(&f.configPath, "config", "", "TOML configuration file")
	fl.StringVar(&f.memory, "memory", "", "arena capacity, e.g. 16MB (overrides vm.memory)")
	fl.IntVar(&f.maxProcs, "max-processors", 0, "processor limit (overrides vm.max_processors)")
	fl.StringVar(&f.logLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	fl.StringVar(&f.logFormat, "log-format", "", "log output format: terminal or json")
	fl.StringVar(&f.logModules, "log-modules", "", "comma separated modules to log at debug/trace, or \"all\"")
	fl.StringVar(&f.traceJSONL, "trace-jsonl", "", "write an instruction trace as JSON lines (\"-\" for stdout)")
	fl.StringVar(&f.traceDB, "trace-db", "", "write an instruction trace into a LevelDB directory")
	fl.StringVar(&f.otlpEndpoint, "otlp-endpoint", "", "export processor spans to an OTLP/HTTP collector (host:port)")

	rootCmd.AddCommand(newInspectCmd(), newDisasmCmd(), newTraceCmd(), newVersionCmd())
	return rootCmd
}

func fail(cmd *cobra.Command, err error) error {
	fmt.Fprintf(cmd.ErrOrStderr(), "xpvm: %v\n", err)
	return err
}

// config layers the flags over the configuration file over the defaults and
// initialises logging.
func (f *runFlags) config(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if f.configPath != "" {
		loaded, err := config.Load(f.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if f.memory != "" {
		cfg.VM.Memory = f.memory
	}
	if f.maxProcs != 0 {
		cfg.VM.MaxProcessors = f.maxProcs
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if f.logFormat != "" {
		cfg.Log.Format = f.logFormat
	}
	if f.logModules != "" {
		cfg.Log.Modules = strings.Split(f.logModules, ",")
	}
	if f.traceJSONL != "" {
		cfg.Trace.JSONL = f.traceJSONL
	}
	if f.traceDB != "" {
		cfg.Trace.LevelDB = f.traceDB
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.InitLogger(cfg.Log.Level, cfg.Log.Format)
	log.EnableModules(strings.Join(cfg.Log.Modules, ","))
	return cfg, nil
}

// openSinks opens the trace sinks named by cfg. The returned sink is nil
// when tracing is off.
func openSinks(cfg *config.Config, stdout io.Writer) (trace.Sink, error) {
	var sinks trace.Multi
	if cfg.Trace.JSONL == "-" {
		sinks = append(sinks, trace.NewJSONLWriter(stdout))
	} else if cfg.Trace.JSONL != "" {
		w, err := trace.NewJSONLWriterFile(cfg.Trace.JSONL)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, w)
	}
	if cfg.Trace.LevelDB != "" {
		store, err := trace.OpenStore(cfg.Trace.LevelDB)
		if err != nil {
			sinks.Close()
			return nil, err
		}
		sinks = append(sinks, store)
	}
	if len(sinks) == 0 {
		return nil, nil
	}
	return sinks, nil
}

func newTracerProvider(ctx context.Context, endpoint string) (*sdktrace.TracerProvider, error) {
	exp, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("otlp exporter %s: %w", endpoint, err)
	}
	return sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp)), nil
}

// failedSiblings picks the results other than the entry processor's that
// did not end normally.
func failedSiblings(results []xpvm.Result, entry uint64) []xpvm.Result {
	var out []xpvm.Result
	for _, r := range results {
		if r.Proc != entry && r.Status != xpvm.StatusNormal {
			out = append(out, r)
		}
	}
	return out
}

// runObject loads path and runs its entry processor to completion. Program
// output and a "-" JSONL trace go to stdout.
func runObject(ctx context.Context, cfg *config.Config, otlpEndpoint, path string, argv []string, stdout io.Writer) (xpvm.Result, error) {
	opts, err := cfg.Options()
	if err != nil {
		return xpvm.Result{}, err
	}
	opts.Stdout = stdout

	sink, err := openSinks(cfg, stdout)
	if err != nil {
		return xpvm.Result{}, err
	}
	if sink != nil {
		opts.Trace = sink
		defer func() {
			if err := sink.Close(); err != nil {
				log.Warn(log.TraceMonitoring, "closing trace sinks", "err", err)
			}
		}()
	}

	m, err := xpvm.NewMachine(opts)
	if err != nil {
		return xpvm.Result{}, err
	}
	if otlpEndpoint != "" {
		tp, err := newTracerProvider(ctx, otlpEndpoint)
		if err != nil {
			return xpvm.Result{}, err
		}
		defer tp.Shutdown(context.Background())
		m.Tp = tp
		m.SendTrace = true
	}

	if _, err := m.LoadFile(path); err != nil {
		return xpvm.Result{}, err
	}
	res, err := m.Run(ctx, argv)
	if err != nil {
		return xpvm.Result{}, err
	}
	// Siblings still running are reported when they finish.
	m.Wait()
	for _, sib := range failedSiblings(m.Results(), res.Proc) {
		log.Warn(log.CLIMonitoring, "processor ended abnormally", "proc", sib.Proc, "status", sib.Status, "value", sib.Value, "err", sib.Err)
	}
	log.Debug(log.CLIMonitoring, "run finished", "path", path, "arena", m.Arena.Stats())
	return res, nil
}
