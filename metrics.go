package rpc

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const instrumentationName = "github.com/RidgeA/ib-rpc"

const (
	outcomeFulfilled = "fulfilled"
	outcomeRejected  = "rejected"
	outcomeAborted   = "aborted"

	reasonUnrouted   = "unrouted"
	reasonUnclaimed  = "unclaimed"
	reasonUnknownKey = "unknown key"
	reasonNoListener = "no listener"
)

type metrics struct {
	invocations metric.Int64Counter
	events      metric.Int64Counter
	dropped     metric.Int64Counter
	settlements metric.Int64Counter
}

func newMetrics(meter metric.Meter) (*metrics, error) {
	var (
		m   metrics
		err error
	)
	if m.invocations, err = meter.Int64Counter("ibrpc.invocations",
		metric.WithDescription("Invocations accepted by a responder")); err != nil {
		return nil, err
	}
	if m.events, err = meter.Int64Counter("ibrpc.events",
		metric.WithDescription("Callback events routed to a responder")); err != nil {
		return nil, err
	}
	if m.dropped, err = meter.Int64Counter("ibrpc.events.dropped",
		metric.WithDescription("Callback events nobody was waiting for")); err != nil {
		return nil, err
	}
	if m.settlements, err = meter.Int64Counter("ibrpc.settlements",
		metric.WithDescription("Futures fulfilled, rejected or aborted")); err != nil {
		return nil, err
	}
	return &m, nil
}

// hooks bundles logging and metrics shared by a registry and its responders.
type hooks struct {
	log     logger
	metrics *metrics
}

func newHooks(log logger, meter metric.Meter) *hooks {
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}
	m, err := newMetrics(meter)
	if err != nil {
		log.errorf("Can't create metrics, falling back to noop: %s", err.Error())
		m, _ = newMetrics(noop.NewMeterProvider().Meter(instrumentationName))
	}
	return &hooks{log: log, metrics: m}
}

func (h *hooks) invoked(method string) {
	h.metrics.invocations.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("method", method)))
}

func (h *hooks) routed(event string) {
	h.metrics.events.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("event", event)))
}

func (h *hooks) dropped(event, reason string) {
	h.log.debug("Dropping event %s: %s", event, reason)
	h.metrics.dropped.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("event", event), attribute.String("reason", reason)))
}

func (h *hooks) settled(method, outcome string) {
	h.log.debug("Settled %s response: %s", method, outcome)
	h.metrics.settlements.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("method", method), attribute.String("outcome", outcome)))
}
