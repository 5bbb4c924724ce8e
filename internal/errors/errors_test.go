package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorCodes(t *testing.T) {
	codes := []ErrorCode{
		CodeUnknown,
		CodeValidation,
		CodeConfiguration,
		CodeTimeout,
		CodeCanceled,
		CodePermission,
		CodeTargetInvalid,
		CodeDiscoveryFailed,
		CodeProbeFailed,
		CodeBaselineUnreadable,
		CodeStorage,
		CodeFileNotFound,
	}

	for _, code := range codes {
		assert.NotEmpty(t, string(code))
	}
}

func TestScanError(t *testing.T) {
	t.Run("formats with and without target", func(t *testing.T) {
		err := NewScanError(CodeProbeFailed, "probe failed")
		assert.Equal(t, "[PROBE_FAILED] probe failed", err.Error())

		err = NewScanErrorWithTarget(CodeTargetInvalid, "invalid range", "10.0.0.0/8")
		assert.Contains(t, err.Error(), "10.0.0.0/8")
	})

	t.Run("unwraps the cause", func(t *testing.T) {
		cause := fmt.Errorf("underlying")
		err := WrapScanError(CodeProbeFailed, "probe failed", cause)
		assert.True(t, errors.Is(err, cause))
	})
}

func TestGetCode(t *testing.T) {
	assert.Equal(t, CodeTargetInvalid, GetCode(ErrInvalidRange("x", nil)))
	assert.Equal(t, CodeTargetInvalid, GetCode(ErrInvalidPorts("x", nil)))
	assert.Equal(t, CodePermission, GetCode(ErrPrivilege("eth0", nil)))
	assert.Equal(t, CodeBaselineUnreadable, GetCode(ErrBaselineUnreadable("scan.json", nil)))
	assert.Equal(t, CodeUnknown, GetCode(fmt.Errorf("plain error")))
	assert.Equal(t, CodeValidation, GetCode(NewConfigFieldError(CodeValidation, "bad", "f", 1)))
}

func TestIsCode(t *testing.T) {
	err := ErrInvalidRange("spec", nil)
	assert.True(t, IsCode(err, CodeTargetInvalid))
	assert.False(t, IsCode(err, CodePermission))
}

func TestIsFatal(t *testing.T) {
	fatal := []error{
		ErrPrivilege("eth0", nil),
		ErrInvalidRange("10.0.0.0/8", nil),
		WrapConfigError(CodeConfiguration, "bad config", nil),
	}
	for _, err := range fatal {
		assert.True(t, IsFatal(err), "error %v", err)
	}

	nonFatal := []error{
		ErrBaselineUnreadable("scan.json", nil),
		NewDiscoveryError(CodeDiscoveryFailed, "sweep failed"),
		fmt.Errorf("plain error"),
	}
	for _, err := range nonFatal {
		assert.False(t, IsFatal(err), "error %v", err)
	}
}

func TestErrPrivilege(t *testing.T) {
	err := ErrPrivilege("eth0", fmt.Errorf("operation not permitted"))
	require.Equal(t, "eth0", err.Interface)
	assert.Contains(t, err.Error(), "eth0")
	assert.Contains(t, err.Error(), "PERMISSION")
}
