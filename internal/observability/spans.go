package observability

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// SpanPrinter is a span processor that writes one line per finished span.
type SpanPrinter struct {
	mu  sync.Mutex
	out io.Writer
}

// NewSpanPrinter creates a SpanPrinter writing to out.
func NewSpanPrinter(out io.Writer) *SpanPrinter {
	return &SpanPrinter{out: out}
}

// NewTracerProvider returns a provider that prints every span to out. Callers
// must Shutdown the provider when done.
func NewTracerProvider(out io.Writer) *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(NewSpanPrinter(out)))
}

// OnStart implements sdktrace.SpanProcessor.
func (p *SpanPrinter) OnStart(context.Context, sdktrace.ReadWriteSpan) {}

// OnEnd implements sdktrace.SpanProcessor.
func (p *SpanPrinter) OnEnd(span sdktrace.ReadOnlySpan) {
	result := "ok"
	if status := span.Status(); status.Code == codes.Error {
		result = "error: " + strings.TrimSpace(status.Description)
	}

	line := fmt.Sprintf("[trace] %s %s%s %s\n",
		span.Name(),
		span.EndTime().Sub(span.StartTime()).Round(time.Microsecond),
		formatAttributes(span.Attributes()),
		result,
	)

	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = io.WriteString(p.out, line)
}

// Shutdown implements sdktrace.SpanProcessor.
func (p *SpanPrinter) Shutdown(context.Context) error {
	return nil
}

// ForceFlush implements sdktrace.SpanProcessor.
func (p *SpanPrinter) ForceFlush(context.Context) error {
	return nil
}

func formatAttributes(attrs []attribute.KeyValue) string {
	var sb strings.Builder
	for _, attr := range attrs {
		key := strings.TrimPrefix(string(attr.Key), "bond.")
		sb.WriteString(fmt.Sprintf(" %s=%s", key, attr.Value.Emit()))
	}
	return sb.String()
}
