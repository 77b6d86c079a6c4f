package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordAuth(t *testing.T) {
	before := testutil.ToFloat64(AuthAttempts.WithLabelValues(MechanismToken, OutcomeFailure))
	RecordAuth(MechanismToken, OutcomeFailure)
	assert.InDelta(t, before+1, testutil.ToFloat64(AuthAttempts.WithLabelValues(MechanismToken, OutcomeFailure)), 0.001)
}

func TestRecordBookOperation(t *testing.T) {
	okBefore := testutil.ToFloat64(BookOperations.WithLabelValues("add", OutcomeSuccess))
	errBefore := testutil.ToFloat64(BookOperations.WithLabelValues("add", OutcomeError))

	RecordBookOperation("add", nil)
	RecordBookOperation("add", errors.New("boom"))

	assert.InDelta(t, okBefore+1, testutil.ToFloat64(BookOperations.WithLabelValues("add", OutcomeSuccess)), 0.001)
	assert.InDelta(t, errBefore+1, testutil.ToFloat64(BookOperations.WithLabelValues("add", OutcomeError)), 0.001)
}
