package voice

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/teslashibe/reachy-voice/pkg/executor"
)

// MeterName is the instrumentation scope of the orchestrator metrics.
const MeterName = "github.com/teslashibe/reachy-voice/pkg/voice"

// Metrics records pipeline activity. A Metrics built from a nil meter
// records nothing.
type Metrics struct {
	transcripts metric.Int64Counter
	commands    metric.Int64Counter
	executions  metric.Int64Counter
	speeches    metric.Int64Counter

	executionDuration metric.Float64Histogram
	speechDuration    metric.Float64Histogram
	turnDuration      metric.Float64Histogram
}

// NewMetrics creates the instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = noop.NewMeterProvider().Meter(MeterName)
	}

	var (
		m   Metrics
		err error
	)
	if m.transcripts, err = meter.Int64Counter("voice.transcripts",
		metric.WithDescription("Transcripts received from the recognizer")); err != nil {
		return nil, err
	}
	if m.commands, err = meter.Int64Counter("voice.commands",
		metric.WithDescription("Commands segmented from speech")); err != nil {
		return nil, err
	}
	if m.executions, err = meter.Int64Counter("voice.executions",
		metric.WithDescription("Assistant CLI executions by terminal status")); err != nil {
		return nil, err
	}
	if m.speeches, err = meter.Int64Counter("voice.speeches",
		metric.WithDescription("Responses spoken through TTS")); err != nil {
		return nil, err
	}
	if m.executionDuration, err = meter.Float64Histogram("voice.execution.duration",
		metric.WithUnit("s"), metric.WithDescription("Assistant CLI run time")); err != nil {
		return nil, err
	}
	if m.speechDuration, err = meter.Float64Histogram("voice.speech.duration",
		metric.WithUnit("s"), metric.WithDescription("Synthesis plus playback time")); err != nil {
		return nil, err
	}
	if m.turnDuration, err = meter.Float64Histogram("voice.turn.duration",
		metric.WithUnit("s"), metric.WithDescription("Command detected to response spoken")); err != nil {
		return nil, err
	}
	return &m, nil
}

func noopMetrics() *Metrics {
	m, _ := NewMetrics(nil)
	return m
}

func (m *Metrics) transcript(ctx context.Context, final bool) {
	m.transcripts.Add(ctx, 1, metric.WithAttributes(attribute.Bool("final", final)))
}

func (m *Metrics) command(ctx context.Context, claudeCode bool) {
	m.commands.Add(ctx, 1, metric.WithAttributes(attribute.Bool("claude_code", claudeCode)))
}

func (m *Metrics) execution(ctx context.Context, status executor.Status, d time.Duration) {
	attrs := metric.WithAttributes(attribute.String("status", string(status)))
	m.executions.Add(ctx, 1, attrs)
	m.executionDuration.Record(ctx, d.Seconds(), attrs)
}

func (m *Metrics) speech(ctx context.Context, ok bool, d time.Duration) {
	attrs := metric.WithAttributes(attribute.Bool("success", ok))
	m.speeches.Add(ctx, 1, attrs)
	m.speechDuration.Record(ctx, d.Seconds(), attrs)
}

func (m *Metrics) turn(ctx context.Context, d time.Duration) {
	m.turnDuration.Record(ctx, d.Seconds())
}
