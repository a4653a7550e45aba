// Package browse provides an interactive line-oriented catalog browser
// backed by a single session.
package browse

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/agentstation/shelf/internal/appcontext"
	"github.com/agentstation/shelf/internal/cmd/emoji"
	"github.com/agentstation/shelf/internal/cmd/output"
	"github.com/agentstation/shelf/pkg/constants"
	"github.com/agentstation/shelf/pkg/errors"
	"github.com/agentstation/shelf/pkg/records"
	"github.com/agentstation/shelf/pkg/session"
)

const help = `Type to search; input is applied after a short pause.
  /enter TEXT   search for TEXT now
  /cat NAME     toggle the category filter
  /cats         list the categories seen so far
  /reset        clear the search and the category
  /reload       run the current search again
  /help         show this help
  /quit         exit`

// NewCommand creates the browse command.
func NewCommand(app appcontext.Interface) *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:     "browse",
		GroupID: "core",
		Short:   "Search the merged catalog interactively",
		Long: `Browse opens one session over the local backend and the external catalog
and reads commands from standard input, one per line.

` + help,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := app.Client()
			if err != nil {
				return err
			}

			r := &repl{
				out:    cmd.OutOrStdout(),
				format: output.DetectFormat(app.OutputFormat()),
				logger: app.Logger(),
			}
			sess, err := client.NewSession(r,
				session.WithDebounce(debounce),
				session.WithLogger(app.Logger()),
				session.WithContext(cmd.Context()),
			)
			if err != nil {
				return err
			}
			r.sess = sess
			defer sess.Close()

			return r.run(cmd.Context(), cmd.InOrStdin())
		},
	}

	cmd.Flags().DurationVar(&debounce, "debounce", constants.DefaultDebounce, "quiet period before typed text is searched")
	return cmd
}

// controller is the part of a session the REPL drives.
type controller interface {
	OnQueryChange(text string)
	OnSubmit(text string)
	OnCategoryToggle(cat string)
	OnReset()
	Reload()
	Categories() []string
}

var _ controller = (*session.Session)(nil)

// repl renders session results and turns input lines into session events.
// Writes to out are serialized because results arrive from load goroutines.
type repl struct {
	mu     sync.Mutex
	out    io.Writer
	format output.Format
	logger *zerolog.Logger
	sess   controller
}

var _ session.Renderer = (*repl)(nil)

// Render implements session.Renderer.
func (r *repl) Render(recs []records.Record, query, category string, meta session.Meta) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintf(r.out, "\n%s %d result(s)", emoji.Info, len(recs))
	if query != "" {
		fmt.Fprintf(r.out, " for %q", query)
	}
	if category != "" {
		fmt.Fprintf(r.out, " in %q", category)
	}
	if meta.Pending {
		fmt.Fprintf(r.out, " %s external catalog loading", emoji.Spinner)
	}
	fmt.Fprintln(r.out)

	if err := output.FormatRecords(r.out, recs, r.format); err != nil {
		r.logger.Error().Err(err).Msg("Failed to format records")
	}
}

// RenderError implements session.Renderer.
func (r *repl) RenderError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "%s %v\n", emoji.Error, err)
}

func (r *repl) println(a ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, a...)
}

// run loads the initial view and dispatches lines until /quit, end of input
// or ctx cancellation.
func (r *repl) run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
		readErr <- scanner.Err()
	}()

	r.println(help)
	r.sess.Reload()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			if err != nil {
				return errors.WrapIO("read", "stdin", err)
			}
			return nil
		case line := <-lines:
			if quit := r.dispatch(line); quit {
				return nil
			}
		}
	}
}

// dispatch applies one input line and reports whether the REPL should exit.
func (r *repl) dispatch(line string) bool {
	if !strings.HasPrefix(line, "/") {
		r.sess.OnQueryChange(line)
		return false
	}

	command, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch command {
	case "/quit", "/exit", "/q":
		return true
	case "/enter":
		r.sess.OnSubmit(arg)
	case "/cat":
		if arg == "" {
			r.println(emoji.Warning, "usage: /cat NAME")
			return false
		}
		r.sess.OnCategoryToggle(arg)
	case "/cats":
		cats := r.sess.Categories()
		if len(cats) == 0 {
			r.println(emoji.Info, "no categories yet")
			return false
		}
		r.println(strings.Join(cats, "\n"))
	case "/reset":
		r.sess.OnReset()
	case "/reload":
		r.sess.Reload()
	case "/help":
		r.println(help)
	default:
		r.println(emoji.Warning, "unknown command "+command+", try /help")
	}
	return false
}
