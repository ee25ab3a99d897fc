package commands

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/leapstack-labs/nvgtls/internal/catalog"
	"github.com/leapstack-labs/nvgtls/internal/cli/config"
	"github.com/leapstack-labs/nvgtls/internal/cli/output"
	"github.com/leapstack-labs/nvgtls/internal/signature"
	"github.com/spf13/cobra"
)

// cursorMarker marks the cursor position in interactive input.
const cursorMarker = "|"

// ResolveOptions holds options for the resolve command.
type ResolveOptions struct {
	Line        string
	Col         int
	Interactive bool
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand() *cobra.Command {
	opts := &ResolveOptions{}
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Show the signature help the server would give for a line",
		Long: `Resolve the active call and parameter for a line of NVGT code.

This runs the same lookup as textDocument/signatureHelp, without an editor.
--col is a byte offset into --line and defaults to the end of the line.

In interactive mode, type a line and put "|" where the cursor is.`,
		Example: `  # Which parameter is the cursor on?
  nvgtls resolve --line 'x = clamp(1, '

  # Cursor in the middle of a line
  nvgtls resolve --line 'alert("a", "b")' --col 8

  # Interactive
  nvgtls resolve -i`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runResolve(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Line, "line", "l", "", "Line of code to resolve")
	cmd.Flags().IntVarP(&opts.Col, "col", "c", -1, "Cursor byte offset in the line (default: end of line)")
	cmd.Flags().BoolVarP(&opts.Interactive, "interactive", "i", false, "Start an interactive prompt")

	return cmd
}

// ResolveResult is the JSON shape of a resolution.
type ResolveResult struct {
	Found           bool     `json:"found"`
	Function        string   `json:"function,omitempty"`
	Signature       string   `json:"signature,omitempty"`
	Params          []string `json:"params,omitempty"`
	Index           int      `json:"index"`
	ActiveParameter int      `json:"active_parameter"`
}

func runResolve(cmd *cobra.Command, opts *ResolveOptions) error {
	cfg := config.GetConfig(cmd.Context())

	c, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return err
	}

	r := newRenderer(cmd, cfg)
	if opts.Interactive {
		return runResolveREPL(cmd, r, c)
	}

	if !cmd.Flags().Changed("line") {
		return errors.New("--line is required unless --interactive is set")
	}

	col := opts.Col
	if col < 0 {
		col = len(opts.Line)
	}
	return printResolve(r, resolveLine(c, opts.Line, col))
}

func resolveLine(c *catalog.Catalog, line string, col int) ResolveResult {
	res, ok := signature.Resolve(line, col, c)
	if !ok {
		return ResolveResult{Index: -1}
	}
	return ResolveResult{
		Found:           true,
		Function:        res.Function.Name,
		Signature:       res.Function.Signature(),
		Params:          res.Function.Params,
		Index:           res.Index,
		ActiveParameter: res.ActiveParameter,
	}
}

func printResolve(r *output.Renderer, res ResolveResult) error {
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(res)
	}

	if !res.Found {
		r.Println(r.Muted("No active call"))
		return nil
	}

	param := "beyond declared parameters"
	if res.ActiveParameter < len(res.Params) {
		param = res.Params[res.ActiveParameter]
	}

	r.Println(output.FormatKeyValue("signature", r.Styles().Bold.Render(res.Signature)))
	r.Println(output.FormatKeyValue("active parameter", fmt.Sprintf("%d (%s)", res.ActiveParameter, param)))
	return nil
}

// splitCursor removes the first cursor marker and returns its byte offset.
// Without a marker the cursor is at the end of the line.
func splitCursor(input string) (string, int) {
	before, after, found := strings.Cut(input, cursorMarker)
	if !found {
		return input, len(input)
	}
	return before + after, len(before)
}

func runResolveREPL(cmd *cobra.Command, r *output.Renderer, c *catalog.Catalog) error {
	items := make([]readline.PrefixCompleterInterface, 0, c.Len()+2)
	for _, fn := range c.Functions() {
		items = append(items, readline.PcItem(fn.Name+"("))
	}
	items = append(items, readline.PcItem(".help"), readline.PcItem(".quit"))

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "nvgt> ",
		AutoComplete:    readline.NewPrefixCompleter(items...),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
		Stdin:           io.NopCloser(cmd.InOrStdin()),
		Stdout:          cmd.OutOrStdout(),
		Stderr:          cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize prompt: %w", err)
	}
	defer func() { _ = rl.Close() }()

	r.Printf("Resolving against %d functions. Mark the cursor with %q; .quit to exit.\n", c.Len(), cursorMarker)

	for {
		input, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		switch strings.TrimSpace(input) {
		case "":
			continue
		case ".quit", ".exit":
			return nil
		case ".help":
			r.Println(`Type a line of NVGT code with "|" at the cursor, e.g. x = clamp(1, |2)`)
			continue
		}

		line, col := splitCursor(input)
		if err := printResolve(r, resolveLine(c, line, col)); err != nil {
			return err
		}
	}
}
