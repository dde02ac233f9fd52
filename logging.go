package bridge

import (
	"io"
	"log/slog"

	"github.com/google/uuid"
)

// discardLogger drops all records; the adapters log only when a logger is
// supplied via WithLogger.
var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// newCorrelationID returns the unique id attached to each adapted request
// for log correlation.
func newCorrelationID() string {
	return uuid.NewString()
}
