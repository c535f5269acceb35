package telemetry

import (
	"context"
	"log"
	"os"

	"qms/counter-service/internal/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Setup installs an OTLP tracer provider when OTEL_EXPORTER_OTLP_ENDPOINT is
// set and returns its shutdown func. Without an endpoint tracing stays no-op.
func Setup(serviceName string) func(context.Context) error {
	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if endpoint == "" {
		return func(context.Context) error { return nil }
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
	if os.Getenv("OTEL_EXPORTER_OTLP_INSECURE") == "true" {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	exporter, err := otlptracegrpc.New(context.Background(), opts...)
	if err != nil {
		log.Printf("otel exporter error: %v", err)
		return func(context.Context) error { return nil }
	}

	res, err := resource.New(context.Background(), resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		log.Printf("otel resource error: %v", err)
	}

	provider := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
	)
	otel.SetTracerProvider(provider)

	return provider.Shutdown
}

// OrderAttributes describes an order on a span.
func OrderAttributes(order models.OrderTicket) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("order.id", order.ID),
		attribute.String("order.ticket", order.Ticket),
		attribute.String("order.status", order.Status),
		attribute.Int("order.items", len(order.Items)),
		attribute.Float64("order.total", order.Total),
	}
}

// CounterAttributes describes the queue counter on a span.
func CounterAttributes(state models.QueueState) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("queue.prefix", state.CurrentPrefix),
		attribute.Int("queue.number", state.CurrentNumber),
		attribute.Int("queue.orders", len(state.Orders)),
	}
}
