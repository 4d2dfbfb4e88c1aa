package otel

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/metric"

	"github.com/MrEthical07/fastauth"
	"github.com/MrEthical07/fastauth/metrics/export/internaldefs"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// Source is satisfied by *fastauth.Engine.
type Source interface {
	MetricsSnapshot() fastauth.MetricsSnapshot
	AuditDropped() uint64
}

type counter struct {
	id fastauth.MetricID
	in metric.Int64ObservableCounter
}

// latencyGauges mirrors the engine's validation latency histogram as
// cumulative bucket gauges plus count and sum.
type latencyGauges struct {
	id      fastauth.MetricID
	buckets [internaldefs.BucketCount]metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
	sum     metric.Float64ObservableGauge
}

type Exporter struct {
	source       Source
	counters     []counter
	latency      []latencyGauges
	auditDropped metric.Int64ObservableCounter
	registration metric.Registration
}

// New registers the instruments on meter. Call Close to unregister.
func New(meter metric.Meter, source Source) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &Exporter{source: source}
	var observables []metric.Observable

	for _, def := range internaldefs.CounterDefs {
		in, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("counter %s: %w", def.Name, err)
		}
		e.counters = append(e.counters, counter{id: def.ID, in: in})
		observables = append(observables, in)
	}

	for _, def := range internaldefs.HistogramDefs {
		g, err := newLatencyGauges(meter, def)
		if err != nil {
			return nil, err
		}
		e.latency = append(e.latency, g)
		for _, b := range g.buckets {
			observables = append(observables, b)
		}
		observables = append(observables, g.count, g.sum)
	}

	dropped, err := meter.Int64ObservableCounter(internaldefs.AuditDroppedName,
		metric.WithDescription(internaldefs.AuditDroppedHelp))
	if err != nil {
		return nil, fmt.Errorf("counter %s: %w", internaldefs.AuditDroppedName, err)
	}
	e.auditDropped = dropped
	observables = append(observables, dropped)

	reg, err := meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	e.registration = reg
	return e, nil
}

func newLatencyGauges(meter metric.Meter, def internaldefs.HistogramDef) (latencyGauges, error) {
	g := latencyGauges{id: def.ID}
	for i, suffix := range internaldefs.HistogramBoundSuffix {
		name := def.Name + "_bucket_le_" + suffix
		in, err := meter.Int64ObservableGauge(name, metric.WithDescription("Cumulative histogram bucket count."))
		if err != nil {
			return g, fmt.Errorf("gauge %s: %w", name, err)
		}
		g.buckets[i] = in
	}

	var err error
	if g.count, err = meter.Int64ObservableGauge(def.Name+"_count", metric.WithDescription("Histogram sample count.")); err != nil {
		return g, fmt.Errorf("gauge %s_count: %w", def.Name, err)
	}
	if g.sum, err = meter.Float64ObservableGauge(def.Name+"_sum", metric.WithDescription(def.Help), metric.WithUnit("s")); err != nil {
		return g, fmt.Errorf("gauge %s_sum: %w", def.Name, err)
	}
	return g, nil
}

func (e *Exporter) observe(_ context.Context, o metric.Observer) error {
	snap := e.source.MetricsSnapshot()
	for _, c := range e.counters {
		o.ObserveInt64(c.in, int64(snap.Counters[c.id]))
	}
	for _, g := range e.latency {
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snap.Histograms[g.id]))
		for i, in := range g.buckets {
			o.ObserveInt64(in, int64(cumulative[i]))
		}
		o.ObserveInt64(g.count, int64(cumulative[len(cumulative)-1]))
		o.ObserveFloat64(g.sum, snap.ValidateLatencySum.Seconds())
	}
	o.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))
	return nil
}

func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
