package telemetry

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the tracer used for HTTP server spans
const TracerName = "github.com/stacklok/code-reader/http"

const maxUserAgentLength = 256

// untracedPaths are probed constantly and never get a span
var untracedPaths = map[string]struct{}{
	"/health":    {},
	"/readiness": {},
	"/metrics":   {},
}

// TracingMiddleware starts a server span per request, continuing any W3C trace
// context found in the headers. A nil provider yields a pass-through middleware.
func TracingMiddleware(provider trace.TracerProvider) func(http.Handler) http.Handler {
	if provider == nil {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	tracer := provider.Tracer(TracerName)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, skip := untracedPaths[r.URL.Path]; skip {
				next.ServeHTTP(w, r)
				return
			}

			ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			ctx, span := tracer.Start(ctx, r.Method+" "+r.URL.Path,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPRequestMethodKey.String(r.Method),
					semconv.URLPath(r.URL.Path),
					semconv.UserAgentOriginal(TruncateUserAgent(r.UserAgent())),
				),
			)
			defer span.End()

			next.ServeHTTP(ww, r.WithContext(ctx))

			// The route pattern is only known once chi has routed the request
			route := routePattern(r)
			span.SetName(r.Method + " " + route)

			status := ww.Status()
			span.SetAttributes(
				semconv.HTTPRouteKey.String(route),
				semconv.HTTPResponseStatusCode(status),
			)
			if status >= http.StatusBadRequest {
				span.SetStatus(codes.Error, http.StatusText(status))
			} else {
				span.SetStatus(codes.Ok, "")
			}
		})
	}
}

// TruncateUserAgent caps a user agent at a fixed length for span attributes
func TruncateUserAgent(ua string) string {
	if len(ua) <= maxUserAgentLength {
		return ua
	}
	return ua[:maxUserAgentLength]
}
