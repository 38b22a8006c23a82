package firestore_test

import (
	"errors"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/riskregister/pkg/domain/model"
	"github.com/secmon-lab/riskregister/pkg/repository/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestCounterError(t *testing.T) {
	t.Run("aborted transaction is exhaustion", func(t *testing.T) {
		err := firestore.CounterErrorForTest(status.Error(codes.Aborted, "too much contention"), "org-1", "OPS-FIN", 3)
		gt.Error(t, err).Is(model.ErrGenerationExhausted)
		gt.Value(t, model.KindOf(err)).Equal(model.KindGenerationExhausted)

		var ge *goerr.Error
		gt.True(t, errors.As(err, &ge))
		gt.Value(t, ge.Values()["attempts"]).Equal(any(3))
		gt.Value(t, ge.Values()[model.PrefixKey]).Equal(any("OPS-FIN"))
	})

	t.Run("aborted status wrapped by the transaction body", func(t *testing.T) {
		cause := goerr.Wrap(status.Error(codes.Aborted, "lock lost"), "failed to get counter")
		err := firestore.CounterErrorForTest(cause, "org-1", "CTL", 5)
		gt.Error(t, err).Is(model.ErrGenerationExhausted)
	})

	t.Run("other failures are kept", func(t *testing.T) {
		err := firestore.CounterErrorForTest(status.Error(codes.Unavailable, "down"), "org-1", "CTL", 5)
		gt.False(t, errors.Is(err, model.ErrGenerationExhausted))
		gt.Value(t, status.Code(err)).Equal(codes.Unavailable)
	})
}
