package pkgrouter

import (
	"context"
	"strconv"

	"github.com/julienschmidt/httprouter"
)

// GetParam reads a path parameter stored in the context by httprouter.
func GetParam(ctx context.Context, key string) string {
	return httprouter.ParamsFromContext(ctx).ByName(key)
}

// GetParamInt64 reads a path parameter as a positive int64. It reports false
// for a missing, non-numeric or non-positive value.
func GetParamInt64(ctx context.Context, key string) (int64, bool) {
	v, err := strconv.ParseInt(GetParam(ctx, key), 10, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}
