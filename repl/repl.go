// Package repl runs an interactive chat loop over a kernelsy.Kernel.
//
// The loop alternates between two states: AwaitingInput reads one line, AwaitingModelResponse
// sends the transcript and prints the reply. "exit" (any case) or end of input stops it.
package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/skosovsky/kernelsy"
)

// Prompts printed by the loop.
const (
	UserPrompt      = "User > "
	AssistantPrefix = "Assistant > "
	ExitCommand     = "exit"
)

// State is the loop's current phase.
type State int

const (
	// AwaitingInput waits for the next user line.
	AwaitingInput State = iota
	// AwaitingModelResponse waits for the kernel to finish the turn.
	AwaitingModelResponse
)

func (s State) String() string {
	switch s {
	case AwaitingInput:
		return "awaiting_input"
	case AwaitingModelResponse:
		return "awaiting_model_response"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Chatter runs one chat turn. *kernelsy.Kernel implements it.
type Chatter interface {
	Chat(ctx context.Context, history *kernelsy.History, settings kernelsy.ExecutionSettings) (*kernelsy.ChatReply, error)
}

// Option configures a Loop.
type Option func(*Loop)

// WithInput sets the line source (default os.Stdin).
func WithInput(r io.Reader) Option {
	return func(l *Loop) { l.in = r }
}

// WithOutput sets where prompts and replies go (default os.Stdout).
func WithOutput(w io.Writer) Option {
	return func(l *Loop) { l.out = w }
}

// WithHistory continues an existing transcript.
func WithHistory(h *kernelsy.History) Option {
	return func(l *Loop) { l.history = h }
}

// WithGreeting prints lines once before the first prompt.
func WithGreeting(lines ...string) Option {
	return func(l *Loop) { l.greeting = append(l.greeting, lines...) }
}

// WithLogger sets the logger for turn diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) { l.logger = logger }
}

// Loop is the interactive session. It owns the transcript. Not safe for concurrent use.
type Loop struct {
	chat     Chatter
	settings kernelsy.ExecutionSettings
	history  *kernelsy.History
	in       io.Reader
	out      io.Writer
	greeting []string
	logger   *slog.Logger
	state    State
}

// New creates a loop that sends each user line through chat with settings.
func New(chat Chatter, settings kernelsy.ExecutionSettings, opts ...Option) *Loop {
	l := &Loop{chat: chat, settings: settings}
	for _, opt := range opts {
		opt(l)
	}
	if l.in == nil {
		l.in = os.Stdin
	}
	if l.out == nil {
		l.out = os.Stdout
	}
	if l.history == nil {
		l.history = kernelsy.NewHistory("")
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	return l
}

// State returns the current phase.
func (l *Loop) State() State { return l.state }

// History returns the transcript.
func (l *Loop) History() *kernelsy.History { return l.history }

// IsExit reports whether line asks the loop to stop.
func IsExit(line string) bool {
	return strings.EqualFold(strings.TrimSpace(line), ExitCommand)
}

// Run reads lines until exit, end of input or ctx is done. Clean termination returns nil;
// a failed turn ends the loop with its error and leaves the user message in the transcript.
func (l *Loop) Run(ctx context.Context) error {
	for _, line := range l.greeting {
		if _, err := fmt.Fprintln(l.out, line); err != nil {
			return err
		}
	}
	sc := bufio.NewScanner(l.in)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		l.state = AwaitingInput
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := fmt.Fprint(l.out, "\n"+UserPrompt); err != nil {
			return err
		}
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			fmt.Fprintln(l.out)
			return nil
		}
		line := sc.Text()
		if IsExit(line) {
			return nil
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		if err := l.turn(ctx, line); err != nil {
			return err
		}
	}
}

func (l *Loop) turn(ctx context.Context, line string) error {
	l.state = AwaitingModelResponse
	l.history.AddUser(line)
	reply, err := l.chat.Chat(ctx, l.history, l.settings)
	if err != nil {
		return err
	}
	l.history.Add(reply.Messages...)
	l.logger.DebugContext(ctx, "turn complete",
		"turn", l.history.TurnID(), "invocations", len(reply.Invocations), "total_tokens", reply.Usage.TotalTokens)
	_, err = fmt.Fprintln(l.out, AssistantPrefix+reply.Content())
	return err
}
