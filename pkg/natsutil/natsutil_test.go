package natsutil

import (
	"testing"

	"github.com/nats-io/nats.go"
)

func TestHeaderCarrier(t *testing.T) {
	msg := &nats.Msg{}
	c := (*headerCarrier)(msg)

	if got := c.Get("traceparent"); got != "" {
		t.Fatalf("Get on empty header = %q", got)
	}
	if keys := c.Keys(); keys != nil {
		t.Fatalf("Keys on empty header = %v", keys)
	}

	c.Set("traceparent", "00-abc-def-01")
	if got := c.Get("traceparent"); got != "00-abc-def-01" {
		t.Fatalf("Get = %q", got)
	}
	if keys := c.Keys(); len(keys) != 1 {
		t.Fatalf("Keys = %v", keys)
	}
	if msg.Header.Get("traceparent") == "" {
		t.Fatal("carrier should write through to the message header")
	}
}
