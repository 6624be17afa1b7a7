package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/leapstack-labs/taskforge/internal/cli/output"
	"github.com/leapstack-labs/taskforge/internal/engine"
	"github.com/leapstack-labs/taskforge/internal/session"
	"github.com/spf13/cobra"
)

// NewSessionCommand creates the interactive session command.
func NewSessionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "session CODE",
		Short: "Configure a task interactively",
		Long: `Open an interactive configuration session for a template.

Choose options one at a time; the prompt shows the live name preview and the
parameters still missing. Type help for commands.`,
		Example: `  taskforge session MW`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionREPL(cmd, args[0])
		},
	}
}

func runSessionREPL(cmd *cobra.Command, code string) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	s, err := cmdCtx.Engine.StartSessionByCode(ctx, code)
	if err != nil {
		return err
	}

	h := &sessionREPL{
		engine:  cmdCtx.Engine,
		session: s,
		r:       cmdCtx.Renderer,
		errW:    cmd.ErrOrStderr(),
	}

	// History lives next to a local store
	var historyFile string
	if cmdCtx.Cfg.Store.Type == "sqlite" && cmdCtx.Cfg.Store.Path != ":memory:" {
		historyFile = filepath.Join(filepath.Dir(cmdCtx.Cfg.Store.Path), "session_history")
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          h.prompt(),
		HistoryFile:     historyFile,
		AutoComplete:    newSessionCompleter(s),
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
		Stdout:          cmd.OutOrStdout(),
		Stderr:          cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "taskforge session %s (%s)\n", s.Template().Code, s.Template().Name)
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Type help for commands, quit to exit")
	_, _ = fmt.Fprintln(cmd.OutOrStdout())

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}

		if done := h.handle(ctx, line); done {
			break
		}
		rl.SetPrompt(h.prompt())
	}

	// Leave no live session behind
	if !s.State().Closed() {
		_ = cmdCtx.Engine.Abandon(s.ID())
	}
	return nil
}

// sessionREPL executes REPL lines against one session.
type sessionREPL struct {
	engine  *engine.Engine
	session *session.Session
	r       *output.Renderer
	errW    io.Writer
}

func (h *sessionREPL) prompt() string {
	return fmt.Sprintf("%s [%s]> ", h.session.Template().Code, h.session.State())
}

// handle runs one line and reports whether the REPL should exit.
func (h *sessionREPL) handle(ctx context.Context, line string) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false
	}
	command := strings.ToLower(parts[0])
	args := parts[1:]

	var err error
	switch command {
	case "quit", "exit":
		return true

	case "help":
		printSessionHelp(h.r.Writer())

	case "show":
		err = renderSnapshot(h.r, h.session.Snapshot())

	case "set":
		err = h.set(args)

	case "clear":
		if len(args) != 1 {
			err = errors.New("usage: clear <parameter>")
			break
		}
		if err = h.session.ClearOption(args[0]); err == nil {
			h.status()
		}

	case "options":
		err = h.options(args)

	case "missing":
		missing := h.session.Missing()
		if len(missing) == 0 {
			h.r.Success("nothing missing")
		} else {
			h.r.Println(strings.Join(missing, ", "))
		}

	case "commit":
		var taskCode string
		if taskCode, err = h.session.Commit(ctx); err == nil {
			h.r.Success("created task " + taskCode)
			return true
		}

	case "abandon":
		if err = h.engine.Abandon(h.session.ID()); err == nil {
			h.r.Muted("session abandoned")
			return true
		}

	default:
		err = fmt.Errorf("unknown command: %s (type help for commands)", command)
	}

	if err != nil {
		_, _ = fmt.Fprintf(h.errW, "Error: %v\n", err)
	}
	return false
}

// set accepts "set slug=option" and "set slug option".
func (h *sessionREPL) set(args []string) error {
	var slug, option string
	switch len(args) {
	case 1:
		var err error
		if slug, option, err = parseAssignment(args[0]); err != nil {
			return err
		}
	case 0:
		return errors.New("usage: set <parameter>=<option>")
	default:
		slug, option = args[0], strings.Join(args[1:], " ")
	}

	if err := applyChoice(h.session, slug, option); err != nil {
		return err
	}
	h.status()
	return nil
}

func (h *sessionREPL) options(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: options <parameter>")
	}
	for _, p := range h.session.Snapshot().Parameters {
		if p.Slug != args[0] {
			continue
		}
		if !p.Visible || !p.Active {
			h.r.Muted(p.Slug + " is not available" + h.gatedBy(p.Slug))
			return nil
		}
		for _, o := range p.Allowed {
			marker := " "
			if p.Selected != nil && p.Selected.ID == o.ID {
				marker = "*"
			}
			h.r.Printf(" %s %s (%s)\n", marker, o.Name, o.Label)
		}
		return nil
	}
	return fmt.Errorf("unknown parameter %q", args[0])
}

// gatedBy names the parameters whose choices reveal slug.
func (h *sessionREPL) gatedBy(slug string) string {
	g := h.session.Graph()
	node, ok := g.NodeBySlug(slug)
	if !ok {
		return ""
	}
	var parents []string
	for _, id := range g.Parents(node.Parameter.ID) {
		if n, ok := g.Node(id); ok {
			parents = append(parents, n.Parameter.Slug)
		}
	}
	if len(parents) == 0 {
		return ""
	}
	return " (depends on " + strings.Join(parents, ", ") + ")"
}

// status prints the preview and what is still missing after a change.
func (h *sessionREPL) status() {
	h.r.KeyValue("Preview", orDash(h.session.Preview()))
	if missing := h.session.Missing(); len(missing) > 0 {
		h.r.KeyValue("Missing", strings.Join(missing, ", "))
	}
}

func printSessionHelp(w io.Writer) {
	help := `
Commands:
  set <param>=<option>  Choose an option (name or label)
  clear <param>         Clear a choice
  options <param>       List the options currently allowed
  show                  Show the whole session
  missing               List required parameters without a choice
  commit                Store the task and print its code
  abandon               Discard the session
  help                  Show this help message
  quit / exit           Exit the REPL

Tips:
  - Choices that become invalid are cleared automatically
  - Tab completion works for commands and parameters
`
	_, _ = fmt.Fprintln(w, help)
}

// newSessionCompleter completes commands and the session's parameter slugs.
func newSessionCompleter(s *session.Session) *readline.PrefixCompleter {
	var slugs []readline.PrefixCompleterInterface
	for _, p := range s.Snapshot().Parameters {
		slugs = append(slugs, readline.PcItem(p.Slug))
	}

	return readline.NewPrefixCompleter(
		readline.PcItem("set", slugs...),
		readline.PcItem("clear", slugs...),
		readline.PcItem("options", slugs...),
		readline.PcItem("show"),
		readline.PcItem("missing"),
		readline.PcItem("commit"),
		readline.PcItem("abandon"),
		readline.PcItem("help"),
		readline.PcItem("quit"),
		readline.PcItem("exit"),
	)
}
