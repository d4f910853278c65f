package pkglog

import "context"

type correlationIDKey struct{}

// GetCorrelationID returns the correlation id of the request carried by ctx,
// or "" outside of a request.
func GetCorrelationID(ctx context.Context) string {
	cid, _ := ctx.Value(correlationIDKey{}).(string)
	return cid
}

func SetCorrelationID(ctx context.Context, cid string) context.Context {
	return context.WithValue(ctx, correlationIDKey{}, cid)
}
