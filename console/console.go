// Package console provides the interactive command line to exercise one
// CANopen node through SDO and NMT.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	canopen "github.com/jaster-prj/canopen-console"
	"github.com/jaster-prj/canopen-console/logger"
)

// Transfer reads and writes dictionary entries in display form.
type Transfer interface {
	Upload(addr canopen.DictionaryAddress) (string, error)
	Download(addr canopen.DictionaryAddress, text string) error
}

// ServiceInvoker sends named NMT services.
type ServiceInvoker interface {
	InvokeService(name string) error
}

// Guarding configures and controls node guarding.
type Guarding interface {
	Start(cfg canopen.GuardingConfig) error
	Stop() error
}

// StateReader returns the last NMT state reported by the node.
type StateReader interface {
	State() (canopen.NodeState, bool)
}

// Services are the node operations the commands are wired to.
type Services struct {
	Transfer Transfer
	NMT      ServiceInvoker
	Guarding Guarding
	Monitor  StateReader
}

// Console runs the command loop.
type Console struct {
	Prompt      string
	HistoryFile string

	// Stdin and Stdout replace the terminal, e.g. to feed a script. The
	// input is then never put into raw mode.
	Stdin  io.ReadCloser
	Stdout io.Writer

	services Services
	tree     *Tree
	out      *Output
	logger   logger.Logger
}

// New creates a console writing to out and registers the command set.
func New(services Services, out *Output, l logger.Logger) *Console {
	if l == nil {
		l = logger.GetLogger()
	}
	c := &Console{
		Prompt:   "canopen> ",
		services: services,
		tree:     NewTree(),
		out:      out,
		logger:   l,
	}
	c.registerDeviceCommands()
	c.registerSDOCommands()
	c.registerNMTCommands()
	return c
}

// Tree returns the command tree of the console.
func (c *Console) Tree() *Tree {
	return c.tree
}

func (c *Console) printf(format string, a ...any) {
	fmt.Fprintf(c.out, format, a...)
}

// Run starts the interactive command loop. It returns when the user quits
// or ctx is done; cancel is called on quit. The terminal is restored before
// Run returns in both cases.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc) error {
	cfg := &readline.Config{
		Prompt:          c.Prompt,
		HistoryFile:     c.HistoryFile,
		AutoComplete:    c.tree.Completer("help", "quit"),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	}
	if c.Stdin != nil {
		cfg.Stdin = c.Stdin
		cfg.FuncIsTerminal = func() bool { return false }
	}
	if c.Stdout != nil {
		cfg.Stdout = c.Stdout
	}
	rl, err := readline.NewEx(cfg)
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	// Closing the instance unblocks Readline and restores the terminal
	loopDone := make(chan struct{})
	defer close(loopDone)
	go func() {
		select {
		case <-ctx.Done():
			rl.Close()
		case <-loopDone:
		}
	}()

	prev := c.out.SetTarget(rl.Stdout())
	defer c.out.SetTarget(prev)

	c.printf("%s\nType 'help <command>' for details, 'quit' to exit.\n", c.tree.Usage(nil))

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			// EOF, or the instance was closed because ctx is done
			c.printf("Exiting...\n")
			cancel()
			return nil
		}

		if c.Execute(ctx, line) {
			c.printf("Exiting...\n")
			cancel()
			return nil
		}
	}
}

// Execute runs one command line and reports whether the console should
// exit. Errors are printed; none of them ends the loop.
func (c *Console) Execute(ctx context.Context, line string) (quit bool) {
	tokens := strings.Fields(line)
	if len(tokens) == 0 {
		return false
	}

	switch tokens[0] {
	case "quit", "exit", "q":
		return true
	case "help", "?":
		c.printf("%s", c.tree.Usage(tokens[1:]))
		return false
	}

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("command panicked", "line", line, "panic", r)
			c.printf("Error: command failed: %v\n", r)
		}
	}()

	call, err := c.tree.Resolve(tokens)
	if err != nil {
		c.printDispatchError(tokens, err)
		return false
	}

	c.logger.Debug("dispatch", "command", strings.Join(call.Path, " "), "args", call.Args)
	if err := call.Invoke(ctx); err != nil {
		c.printf("Error: %v\n", err)
	}
	return false
}

func (c *Console) printDispatchError(tokens []string, err error) {
	var dispatchErr *DispatchError
	if !errors.As(err, &dispatchErr) {
		c.printf("Error: %v\n", err)
		return
	}

	if dispatchErr.Kind == Incomplete && len(dispatchErr.Path) == 0 {
		c.printf("Unknown command: %s (type 'help' for commands)\n", tokens[0])
		return
	}

	c.printf("Invalid command: %v\n", dispatchErr)
	c.printf("%s", c.tree.Usage(dispatchErr.Path))
}
