package corerr_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nymea-go/thingd/pkg/corerr"
)

func TestValidationErrorUnwrapsToParamTypeMismatch(t *testing.T) {
	err := corerr.NewValidationError("brightness", "out of range", 400)
	assert.True(t, errors.Is(err, corerr.ErrParamTypeMismatch))
}

func TestExecutionErrorRetryable(t *testing.T) {
	retryable := corerr.NewExecutionError("p1", "t1", "setupThing", corerr.ErrHardwareFailure, true)
	permanent := corerr.NewExecutionError("p1", "t1", "setupThing", corerr.ErrHardwareFailure, false)

	assert.True(t, corerr.IsRetryable(retryable))
	assert.False(t, corerr.IsRetryable(permanent))
	assert.False(t, corerr.IsRetryable(errors.New("plain")))
}

func TestPluginErrorUnwrap(t *testing.T) {
	err := corerr.NewPluginError("p1", "discover", corerr.ErrTimeout)
	assert.True(t, errors.Is(err, corerr.ErrTimeout))
	assert.True(t, corerr.IsTimeout(err))
}

func TestSentinelHelpers(t *testing.T) {
	assert.True(t, corerr.IsNotFound(corerr.ErrNotFound))
	assert.True(t, corerr.IsCircuitOpen(corerr.ErrCircuitOpen))
	assert.True(t, corerr.IsInvalidRule(corerr.ErrInvalidRule))
}
