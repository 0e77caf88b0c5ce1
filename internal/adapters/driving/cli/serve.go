package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	httpapi "github.com/custodia-labs/imdeck/internal/adapters/driving/http"
	"github.com/custodia-labs/imdeck/internal/logger"
)

// DefaultAddr is the listen address used when none is configured.
const DefaultAddr = ":8000"

var (
	serveAddr         string
	serveInlineWorker bool
	serveConcurrency  int
	workerConcurrency int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serves the job API. Uploaded jobs are queued; run "imdeck worker" to
process them, or pass --inline-worker to process them in this process.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Process queued jobs",
	Args:  cobra.NoArgs,
	RunE:  runWorker,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default server.addr or :8000)")
	serveCmd.Flags().BoolVar(&serveInlineWorker, "inline-worker", false, "process jobs in this process")
	serveCmd.Flags().IntVar(&serveConcurrency, "concurrency", 0, "inline worker slots (default worker.concurrency)")
	workerCmd.Flags().IntVarP(&workerConcurrency, "concurrency", "c", 0, "worker slots (default worker.concurrency)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(workerCmd)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func runServe(cmd *cobra.Command, _ []string) error {
	svc, err := loadServices()
	if err != nil {
		return err
	}
	if svc.Jobs == nil || svc.Decks == nil {
		return errNotConfigured("job")
	}
	logger.SetJSON(true)

	addr := firstNonEmpty(serveAddr, svc.Addr, DefaultAddr)
	server := httpapi.NewServer(svc.Jobs, svc.Decks, httpapi.Config{
		Version:        version,
		MaxUploadBytes: svc.MaxUploadBytes,
		Metrics:        svc.Metrics,
	})

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(ctx, addr)
	})
	if serveInlineWorker {
		n := slots(serveConcurrency, svc.WorkerConcurrency)
		g.Go(func() error {
			return svc.Jobs.RunWorker(ctx, n)
		})
	}
	return g.Wait()
}

func runWorker(cmd *cobra.Command, _ []string) error {
	svc, err := loadServices()
	if err != nil {
		return err
	}
	if svc.Jobs == nil {
		return errNotConfigured("job")
	}
	logger.SetJSON(true)

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	return svc.Jobs.RunWorker(ctx, slots(workerConcurrency, svc.WorkerConcurrency))
}

func slots(flag, configured int) int {
	if flag > 0 {
		return flag
	}
	if configured > 0 {
		return configured
	}
	return 1
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
