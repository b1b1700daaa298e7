package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics counts CLI activity. Instruments come from the global meter
// provider and are no-ops until one is installed.
type Metrics struct {
	commands metric.Int64Counter
	failures metric.Int64Counter
}

func NewMetrics() (*Metrics, error) {
	meter := otel.Meter("levelgraph")
	commands, err := meter.Int64Counter("levelgraph.commands",
		metric.WithDescription("Commands run"))
	if err != nil {
		return nil, err
	}
	failures, err := meter.Int64Counter("levelgraph.command_failures",
		metric.WithDescription("Commands that returned an error"))
	if err != nil {
		return nil, err
	}
	return &Metrics{commands: commands, failures: failures}, nil
}

// Record counts one run of command.
func (m *Metrics) Record(ctx context.Context, command string, err error) {
	attrs := metric.WithAttributes(attribute.String("command", command))
	m.commands.Add(ctx, 1, attrs)
	if err != nil {
		m.failures.Add(ctx, 1, attrs)
	}
}
