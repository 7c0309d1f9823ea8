// Package cli implements the graphyte command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/leofalp/graphyte/internal/config"
	"github.com/leofalp/graphyte/providers/ai"
	"github.com/leofalp/graphyte/providers/ai/openai"
)

// version is overridden at build time with -ldflags "-X ...cli.version=...".
var version = "dev"

// App holds the process resources the commands use.
type App struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// LookupEnv reads configuration variables. Default: os.LookupEnv.
	LookupEnv func(string) (string, bool)
	// EnvFile is the dotenv file read before the environment. Default: ".env".
	EnvFile string
	// NewProvider builds the model provider for a run.
	NewProvider func(cfg *config.Config) ai.Provider
	// Now is the clock used for run timestamps.
	Now func() time.Time
}

// NewApp returns an App bound to the process streams and the OpenAI
// provider.
func NewApp() *App {
	return &App{
		Stdin:     os.Stdin,
		Stdout:    os.Stdout,
		Stderr:    os.Stderr,
		LookupEnv: os.LookupEnv,
		NewProvider: func(cfg *config.Config) ai.Provider {
			return openai.New().
				WithAPIKey(cfg.APIKey).
				WithBaseURL(cfg.BaseURL).
				WithHttpClient(&http.Client{})
		},
		Now: time.Now,
	}
}

func (a *App) loadConfig(path string) (*config.Config, error) {
	return config.Load(config.LoadOptions{
		ConfigFile: path,
		EnvFile:    a.EnvFile,
		LookupEnv:  a.LookupEnv,
	})
}

// NewRootCommand builds the command tree. Without a subcommand graphyte
// analyzes its input, as "graphyte run" does.
func NewRootCommand(app *App) *cobra.Command {
	var opts runOptions

	root := &cobra.Command{
		Use:   "graphyte",
		Short: "Classify a document and extract its concepts with a language model",
		Long: `graphyte runs a staged analysis over a document: domain, sub-domains,
topics, seven concept taxonomies, their instances and the relationships
between entities. Every stage writes a JSON artifact under the output
directory.

Input comes from --file, --dir or standard input.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAnalysis(cmd.Context(), app, cmd, opts)
		},
	}
	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "YAML configuration file")
	addRunFlags(root, &opts)

	root.AddCommand(
		newRunCommand(app, &opts),
		newVisualizeCommand(app, &opts),
		newHistoryCommand(app, &opts),
		newVersionCommand(),
	)
	return root
}

// Execute runs the CLI against the process arguments and returns the exit
// code. SIGINT and SIGTERM cancel the run.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return Run(ctx, NewApp(), os.Args[1:])
}

// Run executes args and maps the outcome to an exit code: 0 on success or
// cancellation, 1 on any other error.
func Run(ctx context.Context, app *App, args []string) int {
	cmd := NewRootCommand(app)
	cmd.SetArgs(args)
	cmd.SetIn(app.Stdin)
	cmd.SetOut(app.Stdout)
	cmd.SetErr(app.Stderr)

	err := cmd.ExecuteContext(ctx)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(app.Stderr, "Run cancelled.")
		return 0
	default:
		fmt.Fprintf(app.Stderr, "Error: %v\n", err)
		return 1
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("graphyte version %s\n", version)
		},
	}
}
