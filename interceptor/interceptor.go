// Package interceptor wraps an arbitrary request handler with transparent
// session-scoped PII protection: mask inbound text, invoke the handler,
// unmask the outbound text with the same session's mapping, and clear the
// mapping on every exit path.
package interceptor

import (
	"context"
	"errors"

	"github.com/nlip-soln/nlipmesh/logging"
	"github.com/nlip-soln/nlipmesh/pii"
	"github.com/nlip-soln/nlipmesh/session"
)

// Handler is the opaque downstream request handler supplied by the
// surrounding application. The interceptor never inspects its internals.
type Handler func(ctx context.Context, text string) (string, error)

// Interceptor applies PII masking around a Handler for each session request.
type Interceptor struct {
	enabled  bool
	detector pii.Detector
	codec    *pii.Codec
	logger   logging.Logger
}

// Options configure an Interceptor.
type Options struct {
	// Enabled toggles PII protection. When false, Intercept calls the
	// handler directly; output is byte-identical to having no interceptor.
	Enabled  bool
	Detector pii.Detector
	Codec    *pii.Codec
	Logger   logging.Logger
}

// New creates an Interceptor.
func New(detector pii.Detector, optFns ...func(o *Options)) *Interceptor {
	opts := Options{
		Enabled:  true,
		Detector: detector,
		Codec:    pii.NewCodec(),
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Interceptor{
		enabled:  opts.Enabled,
		detector: opts.Detector,
		codec:    opts.Codec,
		logger:   logging.OrNoOp(opts.Logger),
	}
}

// Enabled reports whether PII protection is active.
func (i *Interceptor) Enabled() bool { return i.enabled }

// Intercept runs one request through the protection cycle:
//
//	detect -> mask -> store mapping on session -> handle -> unmask -> clear.
//
// Detection failures degrade to "no PII found" and are logged, never
// surfaced. Handler failures propagate unchanged to the caller; the
// session's mapping is cleared on success and failure alike so no mapping
// leaks across turns.
func (i *Interceptor) Intercept(ctx context.Context, sess *session.Session, text string, handle Handler) (string, error) {
	if !i.enabled {
		return handle(ctx, text)
	}

	// One in-flight request per session; a second request queues here
	// rather than interleaving with the single mapping slot.
	sess.Begin()
	defer sess.End()
	defer sess.ClearMapping()

	spans, err := i.detector.Detect(ctx, text)
	if err != nil {
		if errors.Is(err, pii.ErrDetectionDegraded) {
			i.logger.Warn("pii detection degraded, processing without masking", "session_id", sess.ID, "error", err)
		} else {
			i.logger.Error("pii detector failed, processing without masking", "session_id", sess.ID, "error", err)
		}
		spans = nil
	}

	masked, mapping := i.codec.Mask(text, spans)
	sess.SetMapping(mapping)
	if len(mapping) > 0 {
		i.logger.Info("masked inbound message", "session_id", sess.ID, "placeholders", len(mapping))
	}

	reply, err := handle(ctx, masked)
	if err != nil {
		return "", err
	}

	return i.codec.Unmask(reply, sess.Mapping()), nil
}
