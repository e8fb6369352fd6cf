package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	log.Logger = zerolog.New(&buf)

	logger := Component("filestore")
	ctx := WithInvocation(context.Background(), "inv-1", "combine")
	logger.Info().Ctx(ctx).Msg("saved")

	var logEntry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Fatalf("failed to parse log: %v", err)
	}

	if cmp := logEntry["cmp"]; cmp != "filestore" {
		t.Errorf("Component() cmp = %v, want %q", cmp, "filestore")
	}

	if msg := logEntry["message"]; msg != "saved" {
		t.Errorf("Component() message = %v, want %q", msg, "saved")
	}

	if id := logEntry["invocation_id"]; id != "inv-1" {
		t.Errorf("Component() invocation_id = %v, want %q", id, "inv-1")
	}
}
