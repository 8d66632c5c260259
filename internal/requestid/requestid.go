// Package requestid carries the per-request correlation id through context so service
// log lines can be matched to the X-Request-ID the client saw.
package requestid

import "context"

type ctxKey struct{}

func NewContext(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the request id, or "-" when ctx carries none.
func FromContext(ctx context.Context) string {
	if id, ok := ctx.Value(ctxKey{}).(string); ok && id != "" {
		return id
	}
	return "-"
}
