// Package interpreter provides the high-level API for driving one Telnet
// negotiation session: a fluent Builder that assembles the FSM, plugin
// manager, and bounded byte pipeline, and the Interpreter handle the host
// application feeds bytes into.
package interpreter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/smnsjas/go-negotel/fsm"
	nlog "github.com/smnsjas/go-negotel/internal/log"
	"github.com/smnsjas/go-negotel/internal/txt"
	"github.com/smnsjas/go-negotel/options"
	"github.com/smnsjas/go-negotel/pipeline"
	"github.com/smnsjas/go-negotel/plugin"
)

// ErrClosed is returned by Submit calls after Close.
var ErrClosed = pipeline.ErrClosed

// ErrNoNegotiationSink is returned by Build when no outbound write
// callback was configured: an interpreter with nowhere to send
// negotiation responses cannot honor the safe-negotiation rule.
var ErrNoNegotiationSink = errors.New("interpreter: no OnNegotiation sink configured")

// DefaultEncoding is the session encoding before any CHARSET agreement.
const DefaultEncoding = "iso-8859-1"

// LineHandler receives one assembled line (without its trailing
// newline), the encoding it was received under, and the interpreter, so
// the handler can respond on the same session.
type LineHandler func(line []byte, encoding string, i *Interpreter)

// NegotiationSink is the outbound write callback: every negotiation
// response, subnegotiation, prompt, and payload byte the engine emits
// goes through it, in generation order.
type NegotiationSink func(b []byte) error

// Interpreter is one Telnet session's protocol engine: exactly one peer,
// one FSM, one plugin set. Bytes go in via SubmitByte/
// SubmitBytes, application callbacks come out on the single consumer
// goroutine, and Close is mandatory on all exit paths.
type Interpreter struct {
	session uuid.UUID
	mode    plugin.Mode
	logger  *slog.Logger

	machine *fsm.Machine
	manager *plugin.Manager
	pipe    *pipeline.Pipeline
	ctx     *pluginContext

	sink   NegotiationSink
	onLine LineHandler

	mu       sync.Mutex
	encoding string
	shared   map[string]any
	closed   bool
}

// Session returns the interpreter's correlation id, attached to every
// log record it emits.
func (i *Interpreter) Session() uuid.UUID { return i.session }

// Mode reports whether this interpreter negotiates as a server or a
// client.
func (i *Interpreter) Mode() plugin.Mode { return i.mode }

// PluginManager exposes the plugin registry for lookups
// (Get/All/IsEnabled).
func (i *Interpreter) PluginManager() *plugin.Manager { return i.manager }

// Context returns this session's plugin context, for host-initiated
// option actions (a GMCP send, a CHARSET request, an MSDP push).
func (i *Interpreter) Context() plugin.Context { return i.ctx }

// EnablePlugin enables a plugin (and, recursively, its dependencies) at
// runtime. Callers outside the FSM goroutine must serialize their own
// enable/disable calls.
func (i *Interpreter) EnablePlugin(id plugin.ID) error {
	return i.manager.Enable(i.ctx, id)
}

// DisablePlugin disables a plugin, failing with HasDependentsError while
// another enabled plugin depends on it.
func (i *Interpreter) DisablePlugin(id plugin.ID) error {
	return i.manager.Disable(i.ctx, id)
}

// CurrentEncoding returns the active session encoding's canonical name.
func (i *Interpreter) CurrentEncoding() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.encoding
}

// SetEncoding replaces the session encoding, the explicit application
// path alongside CHARSET negotiation.
func (i *Interpreter) SetEncoding(name string) {
	i.mu.Lock()
	i.encoding = name
	i.mu.Unlock()
}

// DecodeText transcodes payload bytes from the current session encoding
// to UTF-8, for hosts that want decoded strings rather than raw line
// bytes.
func (i *Interpreter) DecodeText(b []byte) ([]byte, error) {
	return txt.Decode(i.CurrentEncoding(), b)
}

// EncodeText transcodes UTF-8 text into the current session encoding,
// the inverse of DecodeText for outbound payload.
func (i *Interpreter) EncodeText(b []byte) ([]byte, error) {
	return txt.Encode(i.CurrentEncoding(), b)
}

// SubmitByte enqueues one inbound byte. It returns once the byte is
// queued — never after processing — blocking only when the inbound
// channel is full (backpressure) or failing with ErrClosed after Close.
func (i *Interpreter) SubmitByte(ctx context.Context, b byte) error {
	return i.pipe.Submit(ctx, b)
}

// SubmitBytes enqueues buf in order.
func (i *Interpreter) SubmitBytes(ctx context.Context, buf []byte) error {
	return i.pipe.SubmitBytes(ctx, buf)
}

// WaitForProcessing blocks until every submitted byte has been fed
// through the FSM. Test determinism only.
func (i *Interpreter) WaitForProcessing() {
	i.pipe.WaitForProcessing()
}

// Send writes payload bytes to the peer with IAC-doubling applied but
// no other framing.
func (i *Interpreter) Send(payload []byte) error {
	return i.sink(options.EscapePayload(payload))
}

// SendPrompt writes bytes then the negotiated prompt terminator:
// IAC EOR if EOR is active, IAC GA if SUPPRESS-GA is not active, neither
// otherwise.
func (i *Interpreter) SendPrompt(bytes []byte) error {
	return options.SendPrompt(i.ctx, bytes)
}

// Close shuts the pipeline down (draining queued bytes first), disposes
// every plugin in reverse dependency order, and releases the session.
// It is idempotent; subsequent Submit calls fail with ErrClosed.
func (i *Interpreter) Close() error {
	i.mu.Lock()
	alreadyClosed := i.closed
	i.closed = true
	i.mu.Unlock()

	i.pipe.Shutdown()
	if alreadyClosed {
		return nil
	}
	if err := i.manager.Dispose(i.ctx); err != nil {
		return fmt.Errorf("interpreter: dispose: %w", err)
	}
	return nil
}

// feed is the pipeline sink: it maps one wire byte to its trigger and
// drives the FSM, downgrading any plugin panic or FSM error to the
// Error-trigger recovery path so the consumer goroutine never dies.
func (i *Interpreter) feed(b byte) {
	trigger := fsm.Trigger(b)
	defer func() {
		if r := recover(); r != nil {
			i.logger.ErrorContext(i.traceContext(trigger), "plugin failure recovered", "panic", r)
			_ = i.machine.Fire(fsm.TriggerError, 0)
		}
	}()

	if err := i.machine.Fire(trigger, b); err != nil {
		i.logger.ErrorContext(i.traceContext(trigger), "state machine error, recovering", "error", err)
		_ = i.machine.Fire(fsm.TriggerError, 0)
	}
}

// traceContext captures the FSM position for the ContextHandler wrapped
// around the session logger: current state, the trigger being processed,
// the owning option plugin (encoded as the suffix of a per-option state
// name like "Evaluating/gmcp"), and the pipeline's byte index.
func (i *Interpreter) traceContext(trigger fsm.Trigger) context.Context {
	state := string(i.machine.Current())
	ctx := nlog.WithState(context.Background(), state)
	ctx = nlog.WithTrigger(ctx, trigger.String())
	if _, opt, found := strings.Cut(state, "/"); found {
		ctx = nlog.WithOption(ctx, opt)
	}
	return nlog.WithByteIndex(ctx, i.pipe.Processed())
}

// pluginContext implements plugin.Context over the owning Interpreter.
type pluginContext struct {
	i *Interpreter
}

func (c *pluginContext) SendNegotiation(b []byte) error { return c.i.sink(b) }

func (c *pluginContext) CurrentEncoding() string { return c.i.CurrentEncoding() }
func (c *pluginContext) SetEncoding(name string) { c.i.SetEncoding(name) }

func (c *pluginContext) Mode() plugin.Mode { return c.i.mode }

func (c *pluginContext) FSM() *fsm.Machine { return c.i.machine }

func (c *pluginContext) Get(id plugin.ID) (plugin.Plugin, bool) { return c.i.manager.Get(id) }
func (c *pluginContext) IsEnabled(id plugin.ID) bool            { return c.i.manager.IsEnabled(id) }

func (c *pluginContext) SharedSet(key string, val any) {
	c.i.mu.Lock()
	c.i.shared[key] = val
	c.i.mu.Unlock()
}

func (c *pluginContext) SharedGet(key string) (any, bool) {
	c.i.mu.Lock()
	defer c.i.mu.Unlock()
	v, ok := c.i.shared[key]
	return v, ok
}

func (c *pluginContext) Logger() *slog.Logger { return c.i.logger }

// Builder assembles an Interpreter. Configure it fluently, then call
// Build exactly once. A zero Builder is in server mode (ModeServer is
// Mode's zero value) and has no sink, so Build fails on it until
// OnNegotiation is set.
type Builder struct {
	mode          plugin.Mode
	logger        *slog.Logger
	sink          NegotiationSink
	onLine        LineHandler
	plugins       []plugin.Plugin
	maxLineBuffer int
	queueCapacity int
}

// NewBuilder starts a Builder in the given mode.
func NewBuilder(mode plugin.Mode) *Builder {
	return &Builder{mode: mode}
}

// WithLogger attaches a structured logger. Without one, logging is a
// no-op.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// OnNegotiation registers the outbound write callback. Required.
func (b *Builder) OnNegotiation(sink NegotiationSink) *Builder {
	b.sink = sink
	return b
}

// OnLine registers the application's line callback, fired with each
// assembled line when the line buffer flushes on newline.
func (b *Builder) OnLine(fn LineHandler) *Builder {
	b.onLine = fn
	return b
}

// AddPlugin registers an option plugin. Registration order is the
// topological tie-break, so it is also the deterministic initialization
// order among independent plugins.
func (b *Builder) AddPlugin(p plugin.Plugin) *Builder {
	b.plugins = append(b.plugins, p)
	return b
}

// MaxLineBuffer overrides the 5 MiB default line-assembly cap.
func (b *Builder) MaxLineBuffer(n int) *Builder {
	b.maxLineBuffer = n
	return b
}

// QueueCapacity overrides the inbound channel capacity (default 10 000).
// Exposed for tests; production hosts should keep the default.
func (b *Builder) QueueCapacity(n int) *Builder {
	b.queueCapacity = n
	return b
}

// Build wires everything together: framing protocol onto a fresh FSM,
// plugin registration and dependency-ordered initialization (which emits
// each plugin's initial offers), then the bounded pipeline. A Builder is
// single-use.
func (b *Builder) Build() (*Interpreter, error) {
	if b.sink == nil {
		return nil, ErrNoNegotiationSink
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(discardHandler{})
	}
	session := uuid.New()
	logger = slog.New(nlog.NewContextHandler(logger.Handler())).With(
		"component", "interpreter",
		"session", session.String(),
	)

	i := &Interpreter{
		session:  session,
		mode:     b.mode,
		logger:   logger,
		machine:  fsm.NewMachine(fsm.Accepting),
		manager:  plugin.NewManager(),
		sink:     b.sink,
		onLine:   b.onLine,
		encoding: DefaultEncoding,
		shared:   make(map[string]any),
	}
	i.ctx = &pluginContext{i: i}

	fsm.ConfigureFraming(i.machine, fsm.FramingConfig{
		Send: b.sink,
		OnLine: func(line []byte) {
			if i.onLine != nil {
				i.onLine(line, i.CurrentEncoding(), i)
			}
		},
		MaxLineBuffer: b.maxLineBuffer,
		OnOverflow: func() {
			logger.Warn("line buffer overflow, flushing partial line")
		},
	})

	for _, p := range b.plugins {
		if err := i.manager.Register(p); err != nil {
			return nil, fmt.Errorf("interpreter: register %s: %w", p.Name(), err)
		}
	}
	if err := i.manager.Build(i.ctx); err != nil {
		return nil, err
	}
	if err := i.machine.Build(); err != nil {
		return nil, err
	}

	i.machine.OnUnhandledTrigger(func(state fsm.State, trigger fsm.Trigger, bb byte) {
		logger.Warn("unhandled trigger, recovering",
			"state", string(state),
			"trigger", trigger.String(),
			"byte", bb,
		)
		_ = i.machine.Fire(fsm.TriggerError, 0)
	})
	i.machine.OnTransition(func(e fsm.TransitionEvent) {
		logger.Log(context.Background(), slog.LevelDebug-4, "transition",
			"from", string(e.From),
			"to", string(e.To),
			"trigger", e.Trigger.String(),
		)
	})

	i.pipe = pipeline.New(b.queueCapacity, i.feed)
	logger.Debug("session built", "mode", b.mode.String(), "plugins", len(b.plugins))
	return i, nil
}

// discardHandler is the nil-safe logging floor: every record is
// discarded without formatting cost.
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (discardHandler) WithAttrs([]slog.Attr) slog.Handler        { return discardHandler{} }
func (discardHandler) WithGroup(string) slog.Handler             { return discardHandler{} }
