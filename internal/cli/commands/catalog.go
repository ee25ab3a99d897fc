package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/leapstack-labs/nvgtls/internal/catalog"
	"github.com/leapstack-labs/nvgtls/internal/cli/config"
	"github.com/leapstack-labs/nvgtls/internal/cli/output"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// NewCatalogCommand creates the catalog command group.
func NewCatalogCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect and validate NVGT function catalogs",
		Long: `Work with the function catalog that drives completion and signature help.

A catalog is a JSON or YAML array of {name, params, description} entries.`,
	}

	cmd.AddCommand(newCatalogListCommand())
	cmd.AddCommand(newCatalogValidateCommand())

	return cmd
}

// CatalogListOptions holds options for the catalog list command.
type CatalogListOptions struct {
	Prefix string
}

func newCatalogListCommand() *cobra.Command {
	opts := &CatalogListOptions{}
	cmd := &cobra.Command{
		Use:   "list [catalog]",
		Short: "List the functions in a catalog",
		Example: `  # List the configured catalog
  nvgtls catalog list

  # Only functions starting with "key_", as JSON
  nvgtls catalog list --prefix key_ -o json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCatalogList(cmd, args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Prefix, "prefix", "", "Only list functions whose name starts with this prefix")

	return cmd
}

func runCatalogList(cmd *cobra.Command, args []string, opts *CatalogListOptions) error {
	cfg := config.GetConfig(cmd.Context())
	path := cfg.CatalogPath
	if len(args) == 1 {
		path = args[0]
	}

	c, err := catalog.Load(path)
	if err != nil {
		return err
	}

	functions := make([]catalog.Function, 0, c.Len())
	for _, fn := range c.Functions() {
		if strings.HasPrefix(fn.Name, opts.Prefix) {
			functions = append(functions, fn)
		}
	}

	r := newRenderer(cmd, cfg)
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(functions)
	}

	r.Header(1, fmt.Sprintf("Functions (%d of %d)", len(functions), c.Len()))
	if len(functions) == 0 {
		r.Println(r.Muted("No functions match."))
		return nil
	}

	rows := make([][]string, 0, len(functions))
	for _, fn := range functions {
		rows = append(rows, []string{fn.Name, fn.Signature(), truncateOneLine(fn.Description, 60)})
	}
	r.Table([]string{"Name", "Signature", "Description"}, rows)
	return nil
}

// CatalogValidateOptions holds options for the catalog validate command.
type CatalogValidateOptions struct {
	Watch bool
	Jobs  int
}

func newCatalogValidateCommand() *cobra.Command {
	opts := &CatalogValidateOptions{}
	cmd := &cobra.Command{
		Use:   "validate [catalog...]",
		Short: "Check catalogs for decode and schema errors",
		Long: `Load each catalog the way the language server does and report problems.

With no arguments the configured catalog_path is checked. With --watch the
catalogs are re-checked whenever they change on disk, until interrupted.`,
		Example: `  # Validate the configured catalog
  nvgtls catalog validate

  # Validate several files and keep watching them
  nvgtls catalog validate data/core.json data/audio.yaml --watch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCatalogValidate(cmd, args, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "Re-validate when a catalog changes")
	cmd.Flags().IntVarP(&opts.Jobs, "jobs", "j", runtime.NumCPU(), "Catalogs to validate in parallel")

	return cmd
}

// ValidationResult is the outcome of loading one catalog.
type ValidationResult struct {
	Path      string `json:"path"`
	Functions int    `json:"functions"`
	Error     string `json:"error,omitempty"`
}

// OK reports whether the catalog loaded.
func (v ValidationResult) OK() bool { return v.Error == "" }

func runCatalogValidate(cmd *cobra.Command, args []string, opts *CatalogValidateOptions) error {
	cfg := config.GetConfig(cmd.Context())
	logger := config.GetLogger(cmd.Context())

	paths := args
	if len(paths) == 0 {
		paths = []string{cfg.CatalogPath}
	}

	r := newRenderer(cmd, cfg)

	results, err := validateCatalogs(cmd.Context(), paths, opts.Jobs)
	if err != nil {
		return err
	}
	failErr := reportValidation(r, results)

	if !opts.Watch {
		return failErr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	w, err := newCatalogWatcher(paths, logger)
	if err != nil {
		return err
	}

	r.Println(r.Muted("Watching for changes. Press Ctrl+C to stop."))
	return w.Run(ctx, func(changed []string) {
		results, err := validateCatalogs(ctx, changed, opts.Jobs)
		if err != nil {
			logger.Warn("Validation interrupted", "error", err)
			return
		}
		_ = reportValidation(r, results)
	})
}

// validateCatalogs loads every path concurrently, at most jobs at a time.
// Results keep the order of paths; a bad catalog never stops the others.
func validateCatalogs(ctx context.Context, paths []string, jobs int) ([]ValidationResult, error) {
	results := make([]ValidationResult, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	if jobs > 0 {
		g.SetLimit(jobs)
	}

	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			results[i] = ValidationResult{Path: path}
			c, err := catalog.Load(path)
			if err != nil {
				results[i].Error = err.Error()
				return nil
			}
			results[i].Functions = c.Len()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// reportValidation prints results and returns an error if any catalog failed.
func reportValidation(r *output.Renderer, results []ValidationResult) error {
	failed := 0
	for _, res := range results {
		if !res.OK() {
			failed++
		}
	}

	if r.EffectiveMode() == output.ModeJSON {
		if err := r.JSON(results); err != nil {
			return err
		}
	} else {
		for _, res := range results {
			name := filepath.Base(res.Path)
			switch {
			case !res.OK():
				r.Error(res.Error)
			case res.Functions == 0:
				r.Warning(fmt.Sprintf("%s: catalog is empty", name))
			default:
				r.Success(fmt.Sprintf("%s: %d functions", name, res.Functions))
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d catalogs invalid", failed, len(results))
	}
	return nil
}

func newRenderer(cmd *cobra.Command, cfg *config.Config) *output.Renderer {
	return output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.Output))
}

func truncateOneLine(s string, maxLen int) string {
	runes := []rune(strings.ReplaceAll(s, "\n", " "))
	if len(runes) <= maxLen {
		return string(runes)
	}
	return string(runes[:maxLen-3]) + "..."
}
