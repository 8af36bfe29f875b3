package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes OTLP instruments for sync and authorization activity.
type Metrics struct {
	syncRuns         metric.Int64Counter
	syncRecords      metric.Int64Counter
	authzDenied      metric.Int64Counter
	rateLimitAllowed metric.Int64Counter
	rateLimitDenied  metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(15*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "switchboard"
	}
	meter := provider.Meter(name)

	syncRuns, err := meter.Int64Counter("switchboard.sync.runs")
	if err != nil {
		return nil, err
	}
	syncRecords, err := meter.Int64Counter("switchboard.sync.records")
	if err != nil {
		return nil, err
	}
	authzDenied, err := meter.Int64Counter("switchboard.authz.denied")
	if err != nil {
		return nil, err
	}
	rateLimitAllowed, err := meter.Int64Counter("switchboard.rate_limit.allowed")
	if err != nil {
		return nil, err
	}
	rateLimitDenied, err := meter.Int64Counter("switchboard.rate_limit.denied")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		syncRuns:         syncRuns,
		syncRecords:      syncRecords,
		authzDenied:      authzDenied,
		rateLimitAllowed: rateLimitAllowed,
		rateLimitDenied:  rateLimitDenied,
	}, nil
}

// RecordSyncRun counts a finished sync and the rows it touched.
func (m *Metrics) RecordSyncRun(ctx context.Context, resource, status string, records int) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("resource", strings.TrimSpace(resource)),
		attribute.String("status", strings.TrimSpace(status)),
	)
	m.syncRuns.Add(ctx, 1, metric.WithAttributes(attrs...))
	if records > 0 {
		m.syncRecords.Add(ctx, int64(records), metric.WithAttributes(attrs...))
	}
}

func (m *Metrics) RecordAuthzDenied(ctx context.Context, action, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("action", strings.TrimSpace(action)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.authzDenied.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordRateLimitAllowed(ctx context.Context, orgID, endpoint string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("org_id", strings.TrimSpace(orgID)),
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
	)
	m.rateLimitAllowed.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordRateLimitDenied(ctx context.Context, orgID, endpoint, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("org_id", strings.TrimSpace(orgID)),
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"org_id":      {},
	"endpoint":    {},
	"status_code": {},
	"resource":    {},
	"status":      {},
	"action":      {},
	"reason":      {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
