package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserMessage_DistinguishesServiceFailures(t *testing.T) {
	down := UserMessage(fmt.Errorf("analyze: %w", ErrServiceUnavailable))
	bad := UserMessage(fmt.Errorf("analyze: %w", ErrBadInput))
	network := UserMessage(fmt.Errorf("analyze: %w", ErrNetwork))
	timeout := UserMessage(fmt.Errorf("analyze: %w", ErrRequestTimeout))

	msgs := map[string]bool{down: true, bad: true, network: true, timeout: true}
	assert.Len(t, msgs, 4, "each failure class needs its own message")
	assert.Contains(t, down, "down")
	assert.Contains(t, bad, "rejected")
	assert.Contains(t, network, "Network")
}

func TestUserMessage_NilAndUnknown(t *testing.T) {
	assert.Empty(t, UserMessage(nil))
	assert.NotEmpty(t, UserMessage(errors.New("boom")))
}
