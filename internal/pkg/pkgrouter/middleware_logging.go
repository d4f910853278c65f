package pkgrouter

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/julienschmidt/httprouter"
)

// maxLoggedBodyBytes caps how much of an error response is kept for the log.
const maxLoggedBodyBytes = 4 << 10

//nolint:gochecknoglobals // lookup table
var sensitiveKeys = map[string]struct{}{
	"authorization":       {},
	"proxy-authorization": {},
	"cookie":              {},
	"set-cookie":          {},
	"password":            {},
}

func maskHeaders(headers http.Header) http.Header {
	result := headers.Clone()
	for key := range result {
		if _, found := sensitiveKeys[strings.ToLower(key)]; found {
			result.Set(key, "***")
		}
	}
	return result
}

func maskData(v any) any {
	switch val := v.(type) {
	case map[string]any:
		masked := make(map[string]any, len(val))
		for k, inner := range val {
			if _, found := sensitiveKeys[strings.ToLower(k)]; found {
				masked[k] = "***"
				continue
			}
			masked[k] = maskData(inner)
		}
		return masked
	case []any:
		res := make([]any, len(val))
		for i, inner := range val {
			res[i] = maskData(inner)
		}
		return res
	default:
		return v
	}
}

type responseRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
	head   bytes.Buffer
	capped bool
}

func (w *responseRecorder) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *responseRecorder) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}

	if room := maxLoggedBodyBytes - w.head.Len(); room > 0 {
		if len(p) > room {
			w.head.Write(p[:room])
			w.capped = true
		} else {
			w.head.Write(p)
		}
	} else if len(p) > 0 {
		w.capped = true
	}

	n, err := w.ResponseWriter.Write(p)
	w.bytes += n
	return n, err
}

func (w *responseRecorder) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *responseRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func matchedRoutePath(r *http.Request) string {
	if pattern := httprouter.ParamsFromContext(r.Context()).MatchedRoutePath(); pattern != "" {
		return pattern
	}
	return r.URL.Path
}

// describeBody renders a captured body for the log. JSON is decoded and
// masked, short text is kept, and anything else (CSV uploads, PDF
// attachments) is reduced to its size.
func describeBody(contentType string, head []byte, size int, capped bool) any {
	if size == 0 {
		return nil
	}

	ct := strings.ToLower(contentType)
	switch {
	case strings.HasPrefix(ct, "multipart/"):
		return map[string]any{"multipart_bytes": size}
	case strings.Contains(ct, "json") && !capped:
		var v any
		if err := json.Unmarshal(head, &v); err == nil {
			return maskData(v)
		}
	case strings.HasPrefix(ct, "text/") && utf8.Valid(head):
		if capped {
			return string(head) + "...(truncated)"
		}
		return string(head)
	}

	return map[string]any{"content_type": contentType, "bytes": size}
}

// middlewareLogging logs one line when a request arrives and one when its
// response is done. Request bodies are never read here so uploads stream
// straight to the handler; response bodies are only logged for errors.
func middlewareLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := matchedRoutePath(r)
		start := time.Now()

		slog.InfoContext(
			r.Context(),
			"request received",
			"method", r.Method,
			"route", route,
			"path", r.URL.Path,
			"headers", maskHeaders(r.Header),
			"body", describeBody(r.Header.Get("Content-Type"), nil, int(max(r.ContentLength, 0)), true),
		)

		rec := &responseRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}

		attrs := []any{
			"method", r.Method,
			"route", route,
			"path", r.URL.Path,
			"status", status,
			"bytes", rec.bytes,
			"latency_ms", time.Since(start).Milliseconds(),
		}

		level := slog.LevelInfo
		switch {
		case status >= http.StatusInternalServerError:
			level = slog.LevelError
		case status >= http.StatusBadRequest:
			level = slog.LevelWarn
		}
		if level > slog.LevelInfo {
			attrs = append(attrs, "body", describeBody(rec.Header().Get("Content-Type"), rec.head.Bytes(), rec.bytes, rec.capped))
		}

		slog.Log(r.Context(), level, "response sent", attrs...)
	})
}
