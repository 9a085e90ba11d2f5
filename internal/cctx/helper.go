package cctx

import "context"

func WithValues(parent context.Context, pairs ...interface{}) (ctx context.Context) {
	if len(pairs)%2 != 0 {
		panic("cctx: uneven key/value pairs")
	}

	ctx = parent
	for i := 0; i < len(pairs); i += 2 {
		ctx = context.WithValue(ctx, pairs[i], pairs[i+1])
	}
	return
}
