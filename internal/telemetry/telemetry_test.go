package telemetry

import (
	"context"
	"testing"

	"qms/counter-service/internal/models"
)

func TestSetupWithoutEndpointIsNoop(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	shutdown := Setup("counter-service")
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestOrderAttributes(t *testing.T) {
	attrs := OrderAttributes(models.OrderTicket{
		ID:     "o1",
		Ticket: "A07",
		Status: models.StatusReady,
		Items:  []models.OrderItem{{Name: "Burger", Quantity: 2, UnitPrice: 10}},
		Total:  20,
	})
	got := map[string]string{}
	for _, kv := range attrs {
		got[string(kv.Key)] = kv.Value.Emit()
	}
	want := map[string]string{
		"order.id":     "o1",
		"order.ticket": "A07",
		"order.status": "pronto",
		"order.items":  "1",
		"order.total":  "20",
	}
	for key, value := range want {
		if got[key] != value {
			t.Fatalf("%s=%q, want %q", key, got[key], value)
		}
	}
}

func TestCounterAttributes(t *testing.T) {
	attrs := CounterAttributes(models.QueueState{CurrentPrefix: "B", CurrentNumber: 4})
	if len(attrs) != 3 || attrs[0].Value.AsString() != "B" || attrs[1].Value.AsInt64() != 4 {
		t.Fatalf("unexpected attributes %v", attrs)
	}
}
