package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlatformFailureMessages(t *testing.T) {
	cause := errors.New("503 from gateway")
	tests := []struct {
		name       string
		partial    bool
		rolledBack bool
		message    string
	}{
		{name: "nothing applied", message: "platform call failed during claim, retry"},
		{name: "partial", partial: true, message: "claim was partially applied, retry"},
		{name: "rolled back", partial: true, rolledBack: true, message: "claim was partially applied and rolled back, retry"},
		{name: "rollback ignored without partial", rolledBack: true, message: "platform call failed during claim, retry"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewPlatformFailure("claim", cause, tt.partial, tt.rolledBack)
			domainErr := ToDomainError(err)
			assert.Equal(t, CodePlatformCall, domainErr.Code)
			assert.Equal(t, http.StatusBadGateway, domainErr.HTTPStatus)
			assert.Equal(t, tt.message, domainErr.Message)
			assert.Equal(t, tt.partial, domainErr.Details["partially_applied"])
			assert.Equal(t, tt.partial && tt.rolledBack, domainErr.Details["rolled_back"])
			assert.ErrorIs(t, err, cause)
		})
	}
}

func TestIsDenial(t *testing.T) {
	assert.True(t, IsDenial(NewDenied("only the claimant may unclaim")))
	assert.True(t, IsDenial(NewInvalidTarget("target is not staff", nil)))
	assert.True(t, IsDenial(NewNoLongerEligible("ticket changed")))
	assert.True(t, IsDenial(fmt.Errorf("wrapped: %w", NewNotATicket("300"))))
	assert.False(t, IsDenial(NewPlatformFailure("close", errors.New("boom"), false, false)))
	assert.False(t, IsDenial(errors.New("plain")))
}

func TestToDomainErrorWrapsUnknown(t *testing.T) {
	assert.Nil(t, ToDomainError(nil))

	cause := errors.New("boom")
	domainErr := ToDomainError(cause)
	require.NotNil(t, domainErr)
	assert.Equal(t, CodeInternal, domainErr.Code)
	assert.ErrorIs(t, domainErr, cause)
}
