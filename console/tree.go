package console

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/thoas/go-funk"
)

var (
	ErrIncomplete  = errors.New("incomplete command")
	ErrBadArgument = errors.New("bad argument")
)

// DispatchErrorKind tells why a command line did not resolve to a handler.
type DispatchErrorKind int

const (
	// Incomplete means the verbs given name a group, not a command.
	Incomplete DispatchErrorKind = iota
	// BadArgument means an argument is missing, surplus or malformed.
	BadArgument
)

// DispatchError is returned by Tree.Resolve. It never aborts the console;
// the caller renders it as usage text.
type DispatchError struct {
	Kind DispatchErrorKind
	Path []string
	Arg  string
	Err  error
}

func (e *DispatchError) Error() string {
	path := strings.Join(e.Path, " ")
	if e.Kind == Incomplete {
		if path == "" {
			return ErrIncomplete.Error()
		}
		return fmt.Sprintf("%s: %q needs a subcommand", ErrIncomplete, path)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s %s for %q: %v", ErrBadArgument, e.Arg, path, e.Err)
	}
	return fmt.Sprintf("%s %s for %q", ErrBadArgument, e.Arg, path)
}

func (e *DispatchError) Is(target error) bool {
	switch e.Kind {
	case Incomplete:
		return target == ErrIncomplete
	default:
		return target == ErrBadArgument
	}
}

func (e *DispatchError) Unwrap() error { return e.Err }

// ArgParser converts one token to an argument value.
type ArgParser func(token string) (any, error)

// ArgSpec declares one positional argument of a command.
type ArgSpec struct {
	Name     string
	Help     string
	Optional bool
	// Default is bound when an optional argument is not given.
	Default any
	// Parse converts the token; nil keeps the raw string.
	Parse ArgParser
}

func (a ArgSpec) usage() string {
	if a.Optional {
		if a.Default != nil {
			return fmt.Sprintf("[<%s=%v>]", a.Name, a.Default)
		}
		return fmt.Sprintf("[<%s>]", a.Name)
	}
	return fmt.Sprintf("<%s>", a.Name)
}

// Args holds the bound arguments of a resolved call.
type Args map[string]any

// Has reports whether name is bound to a non-nil value.
func (a Args) Has(name string) bool {
	return a[name] != nil
}

// String returns the string bound to name.
func (a Args) String(name string) string {
	s, _ := a[name].(string)
	return s
}

// Handler executes a resolved command.
type Handler func(ctx context.Context, args Args) error

// CommandNode is one verb of the command tree.
type CommandNode struct {
	Name     string
	Help     string
	Args     []ArgSpec
	Handler  Handler
	Children map[string]*CommandNode
}

func newCommandNode(name string) *CommandNode {
	return &CommandNode{Name: name, Children: map[string]*CommandNode{}}
}

// ChildNames returns the child verbs in sorted order.
func (n *CommandNode) ChildNames() []string {
	names := funk.Keys(n.Children).([]string)
	sort.Strings(names)
	return names
}

// ResolvedCall is a handler together with its bound arguments.
type ResolvedCall struct {
	Path []string
	Node *CommandNode
	Args Args
}

// Invoke runs the handler of the call.
func (c *ResolvedCall) Invoke(ctx context.Context) error {
	return c.Node.Handler(ctx, c.Args)
}

// Tree resolves command lines to handlers. It is built once at start-up
// and only read afterwards.
type Tree struct {
	root *CommandNode
}

func NewTree() *Tree {
	return &Tree{root: newCommandNode("")}
}

// Register adds a command at path. Group verbs along the path are created
// as needed; Group sets their help text.
func (t *Tree) Register(path []string, help string, args []ArgSpec, handler Handler) {
	node := t.node(path)
	node.Help = help
	node.Args = args
	node.Handler = handler
}

// Group sets the help text of a group verb.
func (t *Tree) Group(path []string, help string) {
	t.node(path).Help = help
}

func (t *Tree) node(path []string) *CommandNode {
	node := t.root
	for _, verb := range path {
		child, ok := node.Children[verb]
		if !ok {
			child = newCommandNode(verb)
			node.Children[verb] = child
		}
		node = child
	}
	return node
}

// Lookup returns the node at path, or nil.
func (t *Tree) Lookup(path []string) *CommandNode {
	node := t.root
	for _, verb := range path {
		child, ok := node.Children[verb]
		if !ok {
			return nil
		}
		node = child
	}
	return node
}

// Resolve descends the tree along the leading verbs of tokens and binds the
// remaining tokens to the reached command's arguments. Required arguments
// are filled first; optional ones take surplus tokens from left to right.
func (t *Tree) Resolve(tokens []string) (*ResolvedCall, error) {
	node := t.root
	path := []string{}

	rest := tokens
	for len(rest) > 0 {
		child, ok := node.Children[rest[0]]
		if !ok {
			break
		}
		node = child
		path = append(path, rest[0])
		rest = rest[1:]
	}

	if node.Handler == nil {
		return nil, &DispatchError{Kind: Incomplete, Path: path}
	}

	args, err := bindArgs(node.Args, rest)
	if err != nil {
		err.Path = path
		return nil, err
	}
	return &ResolvedCall{Path: path, Node: node, Args: args}, nil
}

func bindArgs(specs []ArgSpec, tokens []string) (Args, *DispatchError) {
	required := 0
	for _, spec := range specs {
		if !spec.Optional {
			required++
		}
	}
	surplus := len(tokens) - required

	args := Args{}
	for _, spec := range specs {
		if spec.Optional {
			if surplus <= 0 {
				args[spec.Name] = spec.Default
				continue
			}
			surplus--
		}
		if len(tokens) == 0 {
			return nil, &DispatchError{Kind: BadArgument, Arg: spec.Name, Err: errors.New("missing")}
		}

		token := tokens[0]
		tokens = tokens[1:]
		if spec.Parse == nil {
			args[spec.Name] = token
			continue
		}
		v, err := spec.Parse(token)
		if err != nil {
			return nil, &DispatchError{Kind: BadArgument, Arg: spec.Name, Err: err}
		}
		args[spec.Name] = v
	}

	if len(tokens) > 0 {
		return nil, &DispatchError{Kind: BadArgument, Arg: strings.Join(tokens, " "), Err: errors.New("unrecognized")}
	}
	return args, nil
}

// Usage renders the help text of the node at path.
func (t *Tree) Usage(path []string) string {
	node := t.Lookup(path)
	if node == nil {
		node, path = t.root, nil
	}

	var b strings.Builder
	if len(path) > 0 {
		fmt.Fprintf(&b, "Usage: %s", strings.Join(path, " "))
		if len(node.Children) > 0 {
			b.WriteString(" {" + strings.Join(node.ChildNames(), "|") + "}")
		}
		for _, arg := range node.Args {
			b.WriteString(" " + arg.usage())
		}
		b.WriteString("\n")
		if node.Help != "" {
			b.WriteString("\n" + node.Help + "\n")
		}
		for _, arg := range node.Args {
			if arg.Help != "" {
				fmt.Fprintf(&b, "  %-18s %s\n", arg.Name, arg.Help)
			}
		}
	}
	if len(node.Children) > 0 {
		b.WriteString("\nCommands:\n")
		for _, name := range node.ChildNames() {
			fmt.Fprintf(&b, "  %-24s %s\n", strings.TrimSpace(strings.Join(append(append([]string{}, path...), name), " ")), node.Children[name].Help)
		}
	}
	return b.String()
}

// Completer builds a readline completer from the verbs of the tree.
func (t *Tree) Completer(extra ...string) *readline.PrefixCompleter {
	items := completerItems(t.root)
	for _, verb := range extra {
		items = append(items, readline.PcItem(verb))
	}
	return readline.NewPrefixCompleter(items...)
}

func completerItems(node *CommandNode) []readline.PrefixCompleterInterface {
	items := make([]readline.PrefixCompleterInterface, 0, len(node.Children))
	for _, name := range node.ChildNames() {
		items = append(items, readline.PcItem(name, completerItems(node.Children[name])...))
	}
	return items
}

// ParseIntWithRadix parses decimal or 0x/0o/0b prefixed unsigned integers
// that fit in bitSize bits.
func ParseIntWithRadix(bitSize int) ArgParser {
	return func(token string) (any, error) {
		v, err := strconv.ParseUint(token, 0, bitSize)
		if err != nil {
			var numErr *strconv.NumError
			if errors.As(err, &numErr) {
				return nil, numErr.Err
			}
			return nil, err
		}
		switch {
		case bitSize <= 8:
			return uint8(v), nil
		case bitSize <= 16:
			return uint16(v), nil
		case bitSize <= 32:
			return uint32(v), nil
		default:
			return v, nil
		}
	}
}
