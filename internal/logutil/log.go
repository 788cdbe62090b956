package logutil

import (
	"context"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type (
	key byte
)

var (
	loggerKey = key(1)
)

func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

func GetOrDefault(ctx context.Context) zerolog.Logger {
	v := ctx.Value(loggerKey)
	if v == nil {
		return log.Logger
	}
	return v.(zerolog.Logger)
}

// TokenDigest returns a short non-reversible handle for a session id or
// token, suitable for log correlation. Raw tokens must never hit the logs.
func TokenDigest(token string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(token))
}
