package dispatch

import (
	"github.com/rs/zerolog"

	"github.com/latticechat/roomengine/pkg/rlog"
)

// Context carries whatever a Handler needs about the record it is
// processing, beyond the decoded payload. It is intentionally minimal and
// free of view/autobase types so this package stays a leaf dependency;
// autobase defines the concrete handlers and closes over its own view and
// pending-queue state.
type Context struct {
	// WriterKey is the 32-byte ed25519 public key of the writer-core this
	// record was linearised from.
	WriterKey []byte

	// Batch is the in-flight *view.Batch for the record's linearised
	// batch, passed as interface{} so this package never imports pkg/view.
	// Handlers registered by autobase type-assert it back to *view.Batch.
	Batch interface{}
}

// Handler processes one record's payload. It must be deterministic
// (spec.md §4.2): no clock reads, no randomness, no network calls.
type Handler func(ctx Context, payload []byte) error

// Router dispatches a decoded record to the handler registered for its
// tag. Unregistered or unknown tags are logged and ignored, never treated
// as a processing error (spec.md §4.4, §7 Kind: Invalid).
type Router struct {
	handlers map[Tag]Handler
	logger   zerolog.Logger
}

// NewRouter returns an empty router.
func NewRouter() *Router {
	return &Router{
		handlers: make(map[Tag]Handler),
		logger:   rlog.WithComponent("dispatch"),
	}
}

// Register installs the handler for tag, replacing any previous one.
func (r *Router) Register(tag Tag, h Handler) {
	r.handlers[tag] = h
}

// Dispatch decodes record and invokes the registered handler, if any. Per
// spec.md §4.2, a handler error is logged and the record leaves no effect
// on the view, but processing of the batch continues; Dispatch therefore
// never returns an error for a single bad record, only for structural
// failures the caller should treat as Fatal (there are none today — this
// return exists so the signature doesn't need to change if that does).
func (r *Router) Dispatch(ctx Context, record []byte) error {
	name, payload, ok, err := Decode(record)
	if err != nil {
		r.logger.Warn().Err(err).Msg("dropping malformed record")
		return nil
	}
	if !ok {
		r.logger.Debug().Msg("ignoring record with unknown command tag")
		return nil
	}

	tag, _ := TagForName(name)
	h, registered := r.handlers[tag]
	if !registered {
		r.logger.Debug().Str("command", string(name)).Msg("no handler registered for command")
		return nil
	}

	if err := h(ctx, payload); err != nil {
		r.logger.Warn().Err(err).Str("command", string(name)).Msg("apply handler failed; record has no effect")
	}
	return nil
}
