package statementhttp

import (
	"context"

	"golang.org/x/sync/singleflight"
)

var generateGroup singleflight.Group

// singleflightGenerate collapses concurrent identical generation requests
// into one pipeline run.
func singleflightGenerate(ctx context.Context, key string, fn func(context.Context) (interface{}, error)) (interface{}, error, bool) {
	resultChan := generateGroup.DoChan(key, func() (interface{}, error) {
		return fn(ctx)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err(), false
	case res := <-resultChan:
		return res.Val, res.Err, res.Shared
	}
}
