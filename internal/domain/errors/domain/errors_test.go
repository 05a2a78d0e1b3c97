package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrInvalidQuery_Wrapping(t *testing.T) {
	wrapped := fmt.Errorf("%w: pattern cannot be empty", ErrInvalidQuery)

	assert.ErrorIs(t, wrapped, ErrInvalidQuery)
	assert.Equal(t, "invalid query: pattern cannot be empty", wrapped.Error())
}

func TestFetchFailures_Messages(t *testing.T) {
	cause := errors.New("connection refused")

	tests := []struct {
		name        string
		err         error
		expectedMsg string
	}{
		{
			name:        "transport",
			err:         &TransportError{Page: 2, Err: cause},
			expectedMsg: "transport failure fetching page 2: connection refused",
		},
		{
			name:        "http status with message",
			err:         &HTTPStatusError{Page: 1, StatusCode: 500, Message: "internal error"},
			expectedMsg: "search service returned HTTP 500 for page 1: internal error",
		},
		{
			name:        "http status without message",
			err:         &HTTPStatusError{Page: 3, StatusCode: 429},
			expectedMsg: "search service returned HTTP 429 for page 3",
		},
		{
			name:        "malformed response",
			err:         &MalformedResponseError{Page: 1, Err: errors.New("unexpected EOF")},
			expectedMsg: "malformed response for page 1: unexpected EOF",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expectedMsg, tt.err.Error())
			assert.True(t, IsFetchFailure(tt.err))
			assert.True(t, IsFetchFailure(fmt.Errorf("session: %w", tt.err)))
		})
	}
}

func TestTransportError_Unwrap(t *testing.T) {
	cause := errors.New("i/o timeout")
	err := fmt.Errorf("wrapped: %w", &TransportError{Page: 1, Err: cause})

	var transportErr *TransportError
	assert.ErrorAs(t, err, &transportErr)
	assert.Equal(t, 1, transportErr.Page)
	assert.ErrorIs(t, err, cause)
}

func TestMalformedSnippetError(t *testing.T) {
	assert.Equal(t, "malformed snippet at line 7: unclosed marker",
		(&MalformedSnippetError{Reason: "unclosed marker", Line: 7}).Error())
	assert.Equal(t, "malformed snippet: unexpected closing marker",
		(&MalformedSnippetError{Reason: "unexpected closing marker"}).Error())
	assert.False(t, IsFetchFailure(&MalformedSnippetError{Reason: "x"}))
	assert.False(t, IsFetchFailure(ErrInvalidQuery))
}
