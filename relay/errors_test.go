package relay

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		expected ErrorKind
	}{
		{
			name:     "HTTP 401 handshake rejection",
			err:      errors.New("websocket: bad handshake: 401 Unauthorized"),
			expected: KindUnauthorized,
		},
		{
			name:     "lowercase unauthorized text",
			err:      errors.New("upstream says: unauthorized api key"),
			expected: KindUnauthorized,
		},
		{
			name:     "HTTP 403",
			err:      errors.New("upstream handshake failed: 403 Forbidden"),
			expected: KindForbidden,
		},
		{
			name:     "dial timeout",
			err:      errors.New("dial tcp: i/o timeout"),
			expected: KindTimeout,
		},
		{
			name:     "context deadline",
			err:      errors.New("context deadline exceeded"),
			expected: KindTimeout,
		},
		{
			name:     "anything else",
			err:      errors.New("connection refused"),
			expected: KindGeneric,
		},
		{
			name:     "nil error",
			err:      nil,
			expected: KindGeneric,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Classify(tc.err))
		})
	}
}

func TestClientCodeMapping(t *testing.T) {
	assert.Equal(t, CodeQwenError, KindUnauthorized.clientCode())
	assert.Equal(t, CodeQwenError, KindForbidden.clientCode())
	assert.Equal(t, CodeQwenError, KindGeneric.clientCode())
	assert.Equal(t, CodeNotReady, KindUnexpectedClose.clientCode())
	assert.Equal(t, CodeProxyError, KindTimeout.clientCode())
}

func TestClientMessageNeverEchoesRawError(t *testing.T) {
	raw := errors.New("401 Unauthorized: invalid bearer sk-raw-credential-fragment")
	kind := Classify(raw)
	msg := kind.clientMessage()
	assert.NotContains(t, msg, "sk-raw-credential-fragment")
	assert.NotContains(t, msg, "401")
	assert.NotEmpty(t, msg)
}
