// Package failover tries providers in a fixed order until one answers.
package failover

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/kata/internal/domain/source"
	"github.com/okian/kata/pkg/logger"
	"github.com/okian/kata/pkg/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/okian/kata/internal/app/failover"

// Gate spaces calls to one provider.
type Gate interface {
	Acquire(ctx context.Context, id source.ID) error
}

// Capable is implemented by clients that know up front which operations
// they cannot serve. Such providers are skipped without waiting on the gate.
type Capable interface {
	Supports(op source.Op) bool
}

// Call invokes one operation on a client.
type Call func(ctx context.Context, c source.Client) (source.Raw, error)

// Router holds the ordered providers.
type Router struct {
	order   []source.ID
	clients map[source.ID]source.Client
	gate    Gate
	log     logger.Logger
	tracer  trace.Tracer
}

// Option configures a Router.
type Option func(*Router)

// WithOrder sets the provider order. Defaults to the order clients are given.
func WithOrder(ids ...source.ID) Option {
	return func(r *Router) {
		if len(ids) > 0 {
			r.order = append([]source.ID(nil), ids...)
		}
	}
}

// WithLogger sets the router logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Router) {
		if l != nil {
			r.log = l
		}
	}
}

// WithTracer replaces the global tracer.
func WithTracer(t trace.Tracer) Option {
	return func(r *Router) {
		if t != nil {
			r.tracer = t
		}
	}
}

// New builds a router over clients.
func New(gate Gate, clients []source.Client, opts ...Option) (*Router, error) {
	if gate == nil {
		return nil, errors.New("failover: gate is required")
	}
	r := &Router{
		clients: make(map[source.ID]source.Client, len(clients)),
		gate:    gate,
		log:     logger.Nop(),
		tracer:  otel.Tracer(tracerName),
	}
	for _, c := range clients {
		if _, dup := r.clients[c.ID()]; dup {
			return nil, fmt.Errorf("failover: duplicate provider %q", c.ID())
		}
		r.clients[c.ID()] = c
		r.order = append(r.order, c.ID())
	}
	for _, opt := range opts {
		opt(r)
	}
	if len(r.order) == 0 {
		return nil, errors.New("failover: no providers")
	}
	for _, id := range r.order {
		if _, ok := r.clients[id]; !ok {
			return nil, fmt.Errorf("failover: unknown provider %q in order", id)
		}
	}
	return r, nil
}

// Order returns the provider order.
func (r *Router) Order() []source.ID {
	return append([]source.ID(nil), r.order...)
}

// Fetch returns the first raw response any provider produces for op.
func (r *Router) Fetch(ctx context.Context, op source.Op, call Call) (source.Raw, error) {
	return Do(ctx, r, op, call, func(raw source.Raw) (source.Raw, error) { return raw, nil })
}

// Do fetches and normalizes in one step, so a body the normalizer rejects
// moves on to the next provider like any other transient failure.
// Not-found and cancellation stop immediately. When every provider failed
// the result matches both ErrAllProvidersExhausted and the last failure.
func Do[T any](ctx context.Context, r *Router, op source.Op, call Call, normalize func(source.Raw) (T, error)) (T, error) {
	var (
		zero T
		last error
	)
	for i, id := range r.order {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		c := r.clients[id]

		v, err := attempt(ctx, r, c, op, call, normalize)
		if err == nil {
			if i > 0 {
				r.log.Info(ctx, "served by fallback provider",
					logger.String("provider", string(id)),
					logger.String("op", string(op)))
			}
			return v, nil
		}
		if !source.Transient(err) {
			return zero, err
		}
		last = err
		metrics.RecordFailover(string(id), string(op), source.KindOf(err))
		r.log.Warn(ctx, "provider failed, trying next",
			logger.String("provider", string(id)),
			logger.String("op", string(op)),
			logger.Error(err))
	}
	return zero, source.Exhausted(op, last)
}

func attempt[T any](ctx context.Context, r *Router, c source.Client, op source.Op, call Call, normalize func(source.Raw) (T, error)) (T, error) {
	var zero T
	id := c.ID()

	if capable, ok := c.(Capable); ok && !capable.Supports(op) {
		return zero, source.NewError(id, op, source.ErrUnsupported, nil)
	}

	ctx, span := r.tracer.Start(ctx, "provider."+string(op),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("provider.id", string(id)),
			attribute.String("provider.op", string(op)),
		))
	defer span.End()

	if err := r.gate.Acquire(ctx, id); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "rate gate")
		return zero, err
	}

	start := time.Now()
	raw, err := call(ctx, c)
	if err == nil {
		var v T
		v, err = normalize(raw)
		if err == nil {
			metrics.RecordProviderRequest(string(id), string(op), "ok", time.Since(start))
			span.SetAttributes(attribute.String("provider.outcome", "ok"))
			return v, nil
		}
	}

	kind := source.KindOf(err)
	metrics.RecordProviderRequest(string(id), string(op), kind, time.Since(start))
	span.SetAttributes(attribute.String("provider.outcome", kind))
	span.RecordError(err)
	span.SetStatus(codes.Error, kind)
	return zero, err
}
