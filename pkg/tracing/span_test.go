package tracing

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/translit-search/pkg/config"
)

func TestChildSpansAttachToParent(t *testing.T) {
	tr := New(config.TracingConfig{})
	ctx, root := tr.Start(context.Background(), "search", "trace-1")
	_, child := StartChildSpan(ctx, "compile")
	child.SetAttr("slots", 3)
	child.End()
	tr.Finish(root)

	if len(root.Children) != 1 || root.Children[0] != child {
		t.Fatalf("children = %v", root.Children)
	}
	if child.TraceID != "trace-1" {
		t.Errorf("child trace id = %q", child.TraceID)
	}
}

func TestDetachedChildSpan(t *testing.T) {
	ctx, span := StartChildSpan(context.Background(), "orphan")
	if SpanFromContext(ctx) != span || span.TraceID != "" {
		t.Errorf("detached span = %+v", span)
	}
}

func TestFinishLogsWhenSampled(t *testing.T) {
	var buf bytes.Buffer
	tr := New(config.TracingConfig{Enabled: true, SampleRate: 1})
	tr.logger = slog.New(slog.NewTextHandler(&buf, nil))

	ctx, root := tr.Start(context.Background(), "search", "trace-2")
	_, child := StartChildSpan(ctx, "match")
	child.End()
	tr.Finish(root)

	out := buf.String()
	if !strings.Contains(out, "span=search") || !strings.Contains(out, "span=match") {
		t.Errorf("log output = %q", out)
	}
}

func TestFinishSilentWhenDisabled(t *testing.T) {
	var buf bytes.Buffer
	tr := New(config.TracingConfig{Enabled: false, SampleRate: 1})
	tr.logger = slog.New(slog.NewTextHandler(&buf, nil))
	_, root := tr.Start(context.Background(), "search", "trace-3")
	tr.Finish(root)
	if buf.Len() != 0 {
		t.Errorf("disabled tracer logged %q", buf.String())
	}
}
