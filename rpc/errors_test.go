package rpc

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyNil(t *testing.T) {
	assert.NoError(t, Classify("call", nil))
}

func TestClassifyTransientSignatures(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		transient bool
	}{
		{"http 429", errors.New("429 Too Many Requests"), true},
		{"rate limit text", errors.New("Your app has exceeded its rate limit"), true},
		{"limit exceeded", errors.New("daily request limit exceeded"), true},
		{"gateway 503", errors.New("503 Service Unavailable"), true},
		{"timeout", errors.New("request timed out"), true},
		{"connection reset", errors.New("read: connection reset by peer"), true},
		{"context deadline", context.DeadlineExceeded, true},
		{"execution reverted", errors.New("execution reverted"), false},
		{"insufficient funds", errors.New("insufficient funds for gas * price + value"), false},
		{"nonce too low", errors.New("nonce too low"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classified := Classify("send", tt.err)
			require.Error(t, classified)
			assert.Equal(t, tt.transient, IsTransient(classified))

			var rpcErr *Error
			require.ErrorAs(t, classified, &rpcErr)
			assert.Equal(t, "send", rpcErr.Op)
			assert.ErrorIs(t, classified, tt.err)
		})
	}
}

func TestClassifyKeepsExistingClassification(t *testing.T) {
	// "reverted" would classify as permanent, but an already-wrapped
	// transient error must stay transient.
	inner := &Error{Op: "send", Transient: true, Err: errors.New("reverted")}
	classified := Classify("receipt", inner)
	assert.True(t, IsTransient(classified))
}

func TestIsTransientOnPlainError(t *testing.T) {
	assert.False(t, IsTransient(errors.New("429")))
}
