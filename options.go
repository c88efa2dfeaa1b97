package mri

import (
	"context"

	"github.com/ehrlich-b/go-mri/internal/logging"
)

// Options configures a Monitor at construction time. It stands in for
// the reference implementation's init(tokens) parameter blob
// (spec.md §6.3): rather than parsing a whitespace-tokenized string at
// runtime, a Go caller builds Options directly, and Raw (if non-empty)
// is still run through internal/token.ParseFlags for compatibility
// with that grammar.
type Options struct {
	// Logger receives session-lifecycle and error-path messages.
	// Defaults to logging.Default() when nil.
	Logger *logging.Logger

	// Context bounds the packet sends that command handlers make on
	// their own (the D reply, the step handler's synthesized stop reply,
	// qRcmd console output); the command loop, the stop reply and the
	// wait-for-gdb-connect loop use the ctx passed to DebugException.
	// Defaults to context.Background() when nil.
	Context context.Context

	// PacketBufferSize sizes the single reused Buffer shared between
	// receive and response assembly. Defaults to
	// DefaultPacketBufferSize.
	PacketBufferSize int

	// Raw is an optional MRI_UART_*-style parameter string (spec.md
	// §6.3), parsed with internal/token.ParseFlags and handed to the
	// platform's Init, unused by the core itself.
	Raw string

	// Metrics, if set, receives per-command instrumentation (dispatch
	// counts, error-reply counts, memory byte counts, latency). Left
	// nil, a Monitor records nothing.
	Metrics *Metrics
}

// DefaultOptions returns the zero-value-safe defaults New applies when
// a field is left unset.
func DefaultOptions() Options {
	return Options{
		Logger:           logging.Default(),
		Context:          context.Background(),
		PacketBufferSize: DefaultPacketBufferSize,
	}
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = logging.Default()
	}
	if o.Context == nil {
		o.Context = context.Background()
	}
	if o.PacketBufferSize <= 0 {
		o.PacketBufferSize = DefaultPacketBufferSize
	}
	return o
}
