package observability

import (
	"time"

	"github.com/rs/zerolog"
)

// LogSession writes one line per finished session and records its metrics.
func LogSession(logger zerolog.Logger, direction, key string, nodes int, bytes int64, duration time.Duration, err error) {
	RecordSession(direction, err == nil, nodes, bytes, duration)

	event := logger.Info()
	if err != nil {
		event = logger.Error().Err(err)
	}
	event.
		Str("direction", direction).
		Str("key", key).
		Int("nodes", nodes).
		Int64("bytes", bytes).
		Dur("duration", duration).
		Msg("graph session finished")
}
