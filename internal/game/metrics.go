package game

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/sgomezmalagon/juego-bolas/internal/game"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

type metrics struct {
	ticks      metric.Int64Counter
	collisions metric.Int64Counter
	commands   metric.Int64Counter
	bodies     metric.Int64ObservableGauge
	reg        metric.Registration
}

// newMetrics uses the global OTel meter (no-op if not configured). bodies
// is sampled on every collection.
func newMetrics(bodies func() (balls, players int)) (*metrics, error) {
	m := meter()
	out := &metrics{}
	var err error

	out.ticks, err = m.Int64Counter(
		"sim.ticks",
		metric.WithDescription("Simulation ticks executed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating ticks counter: %w", err)
	}

	out.collisions, err = m.Int64Counter(
		"sim.collisions",
		metric.WithDescription("Overlapping body pairs resolved"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating collisions counter: %w", err)
	}

	out.commands, err = m.Int64Counter(
		"sim.commands",
		metric.WithDescription("Commands applied to the world"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating commands counter: %w", err)
	}

	out.bodies, err = m.Int64ObservableGauge(
		"sim.bodies",
		metric.WithDescription("Bodies currently in the world"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating bodies gauge: %w", err)
	}

	out.reg, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			balls, players := bodies()
			o.ObserveInt64(out.bodies, int64(balls), metric.WithAttributes(attribute.String("kind", "ball")))
			o.ObserveInt64(out.bodies, int64(players), metric.WithAttributes(attribute.String("kind", "player")))
			return nil
		},
		out.bodies,
	)
	if err != nil {
		return nil, fmt.Errorf("registering bodies callback: %w", err)
	}

	return out, nil
}

func (m *metrics) command(name string) {
	m.commands.Add(context.Background(), 1, metric.WithAttributes(attribute.String("command", name)))
}

func (m *metrics) tick(collisions int) {
	ctx := context.Background()
	m.ticks.Add(ctx, 1)
	if collisions > 0 {
		m.collisions.Add(ctx, int64(collisions))
	}
}

func (m *metrics) close() error {
	return m.reg.Unregister()
}
