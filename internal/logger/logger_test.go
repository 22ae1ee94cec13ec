package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
)

func TestNewDebugLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "release")
	l.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug line written in release mode: %s", buf.String())
	}

	l = New(&buf, "debug")
	l.Debug("shown", "document_id", "doc-1")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid JSON log line: %v", err)
	}
	if entry["msg"] != "shown" || entry["document_id"] != "doc-1" {
		t.Errorf("unexpected entry %v", entry)
	}
	if entry["service"] != "document-summarizer" {
		t.Errorf("service attribute missing: %v", entry)
	}
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	scoped := New(&buf, "release").With("task_id", "t-1")
	ctx := WithContext(context.Background(), scoped)

	FromContext(ctx).Info("hello")
	if !bytes.Contains(buf.Bytes(), []byte(`"task_id":"t-1"`)) {
		t.Errorf("scoped logger not used: %s", buf.String())
	}

	// Falls back without panicking
	FromContext(context.Background()).Info("ignored")
}
