// Command catalogctl administers the product catalog from a terminal, using
// the same configuration and service as the HTTP server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/catalog/internal/app"
	"github.com/JonMunkholm/catalog/internal/config"
	"github.com/JonMunkholm/catalog/internal/core"
	"github.com/JonMunkholm/catalog/internal/logging"
)

// env holds what every subcommand needs once the root pre-run has finished.
type env struct {
	caller string
	app    *app.App
	out    io.Writer
}

func (e *env) service() *core.Service { return e.app.Service }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(os.Stdout).ExecuteContext(ctx)
	stop()
	if err != nil {
		msg := err.Error()
		if core.IsUserFacing(err) {
			msg = core.FormatUserError(err) + ": " + err.Error()
		}
		fmt.Fprintln(os.Stderr, "error:", msg)
		os.Exit(exitCode(err))
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	e := &env{out: out}

	cmd := &cobra.Command{
		Use:           "catalogctl",
		Short:         "Administer the product catalog",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logging.SetupWriter(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)

			if e.caller == "" {
				e.caller = os.Getenv("CATALOG_CALLER_ID")
			}

			e.app, err = app.New(cmd.Context(), cfg)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if e.app != nil {
				e.app.Close()
			}
		},
	}
	cmd.PersistentFlags().StringVar(&e.caller, "as", "", "Caller identity used for authorization (default $CATALOG_CALLER_ID)")

	cmd.AddCommand(
		newImportCmd(e),
		newProductsCmd(e),
		newPricesCmd(e),
		newAdminsCmd(e),
	)
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// exitCode distinguishes caller mistakes (2) and permission problems (3)
// from everything else (1).
func exitCode(err error) int {
	switch {
	case errors.Is(err, core.ErrInvalidInput), errors.Is(err, core.ErrMalformedInput), errors.Is(err, core.ErrNotFound):
		return 2
	case errors.Is(err, core.ErrPermissionDenied):
		return 3
	default:
		return 1
	}
}
