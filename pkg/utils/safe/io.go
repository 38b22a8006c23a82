package safe

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/secmon-lab/riskregister/pkg/utils/logging"
)

// Close closes an io.Closer and logs any error. nil closers are ignored.
func Close(ctx context.Context, closer io.Closer) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logging.From(ctx).Error("Failed to close", slog.Any("error", err))
	}
}

// Rollback aborts a transaction-like value and logs any error other than
// the one reported when the transaction has already finished.
func Rollback(ctx context.Context, tx interface{ Rollback() error }, finished error) {
	if tx == nil {
		return
	}
	if err := tx.Rollback(); err != nil && !errors.Is(err, finished) {
		logging.From(ctx).Error("Failed to rollback", slog.Any("error", err))
	}
}
