// Package cli provides the imdeck command line interface using cobra.
package cli

import (
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/imdeck/internal/core/ports/driving"
	"github.com/custodia-labs/imdeck/internal/logger"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	verbose   bool
	configDir string
)

// Services are the application services the commands drive.
type Services struct {
	Decks   driving.DeckService
	Jobs    driving.JobService
	Recipes driving.RecipeService

	// Addr is the default listen address of serve.
	Addr string

	// WorkerConcurrency is the default number of worker slots.
	WorkerConcurrency int

	// MaxUploadBytes bounds each uploaded file of the HTTP API.
	MaxUploadBytes int64

	// Metrics serves GET /metrics when set.
	Metrics http.Handler

	// Close releases connections. May be nil.
	Close func() error
}

// Bootstrap builds the services from the configuration directory.
type Bootstrap func(configDir string) (*Services, error)

var (
	services  *Services
	bootstrap Bootstrap
)

var rootCmd = &cobra.Command{
	Use:   "imdeck",
	Short: "Generate Information Memorandum decks from PowerPoint templates",
	Long: `imdeck fills a PowerPoint template with drafted copy, financial charts
and a company logo to produce an Information Memorandum deck.

Decks can be built locally from files or recipes, or through the HTTP API
backed by a job queue and workers.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configDir, "config", "", "configuration directory (default ~/.imdeck)")
}

// SetVersion sets the version reported by the version command and the API.
func SetVersion(v string) {
	version = v
}

// SetBootstrap sets the function that builds services on first use.
func SetBootstrap(b Bootstrap) {
	bootstrap = b
}

// SetServices sets the services directly, bypassing the bootstrap.
func SetServices(s *Services) {
	services = s
}

// Execute runs the root command.
func Execute() error {
	defer closeServices()
	return rootCmd.Execute()
}

// loadServices returns the services, building them on first use so that
// commands like version never connect to anything.
func loadServices() (*Services, error) {
	if services != nil {
		return services, nil
	}
	if bootstrap == nil {
		return nil, errors.New("services not configured")
	}
	s, err := bootstrap(configDir)
	if err != nil {
		return nil, err
	}
	services = s
	return services, nil
}

func closeServices() {
	if services == nil || services.Close == nil {
		return
	}
	if err := services.Close(); err != nil {
		logger.Warn("Close failed: %v", err)
	}
}
