package otel

import (
	"context"
	"os"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestInitRequiresServiceName(t *testing.T) {
	if _, err := Init(context.Background(), Config{}); err == nil {
		t.Fatalf("expected error without service name")
	}
}

func TestInitDisabledIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "vaultswapd"})
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestParseHeaders(t *testing.T) {
	got := ParseHeaders(" api-key = abc ,bogus,=x, tenant=vs")
	if len(got) != 2 || got["api-key"] != "abc" || got["tenant"] != "vs" {
		t.Fatalf("unexpected headers %v", got)
	}
}

func TestResourceDescribesInstance(t *testing.T) {
	res, err := Resource(Config{
		ServiceName:    "vaultswapd",
		ServiceVersion: "1.2.0",
		Environment:    "staging",
		InstanceID:     "node-a",
		Attributes:     map[string]string{"vaultswap.data_dir": "/var/lib/vaultswap"},
	})
	if err != nil {
		t.Fatalf("resource: %v", err)
	}
	want := map[string]string{
		"service.name":           "vaultswapd",
		"service.version":        "1.2.0",
		"deployment.environment": "staging",
		"service.instance.id":    "node-a",
		"vaultswap.data_dir":     "/var/lib/vaultswap",
	}
	for key, value := range want {
		got, ok := res.Set().Value(attribute.Key(key))
		if !ok || got.AsString() != value {
			t.Fatalf("%s: got %q (present=%v), want %q", key, got.AsString(), ok, value)
		}
	}
}

func TestResourceDefaultsInstanceToHost(t *testing.T) {
	host, err := os.Hostname()
	if err != nil || host == "" {
		t.Skip("no host name")
	}
	res, err := Resource(Config{ServiceName: "vaultswapd"})
	if err != nil {
		t.Fatalf("resource: %v", err)
	}
	if got, _ := res.Set().Value("service.instance.id"); got.AsString() != host {
		t.Fatalf("instance id %q, want %q", got.AsString(), host)
	}
}
