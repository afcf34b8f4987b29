package auth_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"asanapdf/internal/auth"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestNewStateSigner_ShortSecret(t *testing.T) {
	_, err := auth.NewStateSigner("short")
	assert.Error(t, err)
}

func TestRandomSecret(t *testing.T) {
	a, err := auth.RandomSecret()
	require.NoError(t, err)
	b, err := auth.RandomSecret()
	require.NoError(t, err)

	assert.Len(t, a, 2*auth.MinSecretLength)
	assert.NotEqual(t, a, b)

	_, err = auth.NewStateSigner(a)
	assert.NoError(t, err)
}

func TestStateSigner_RoundTrip(t *testing.T) {
	signer, err := auth.NewStateSigner(testSecret)
	require.NoError(t, err)

	state, err := signer.Issue()
	require.NoError(t, err)
	assert.NoError(t, signer.Verify(state))

	other, err := signer.Issue()
	require.NoError(t, err)
	assert.NotEqual(t, state, other, "each state carries a unique id")
}

func TestStateSigner_RejectsForeignAndTampered(t *testing.T) {
	signer, err := auth.NewStateSigner(testSecret)
	require.NoError(t, err)
	foreign, err := auth.NewStateSigner(strings.Repeat("x", 32))
	require.NoError(t, err)

	state, err := foreign.Issue()
	require.NoError(t, err)
	assert.True(t, errors.Is(signer.Verify(state), auth.ErrInvalidState))

	own, err := signer.Issue()
	require.NoError(t, err)
	assert.True(t, errors.Is(signer.Verify(own+"x"), auth.ErrInvalidState))
	assert.True(t, errors.Is(signer.Verify(""), auth.ErrInvalidState))
	assert.True(t, errors.Is(signer.Verify("not-a-jwt"), auth.ErrInvalidState))
}

func TestStateSigner_Expires(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	signer, err := auth.NewStateSigner(testSecret)
	require.NoError(t, err)
	signer.WithClock(func() time.Time { return now })

	state, err := signer.Issue()
	require.NoError(t, err)

	signer.WithClock(func() time.Time { return now.Add(auth.StateTTL - time.Minute) })
	assert.NoError(t, signer.Verify(state))

	signer.WithClock(func() time.Time { return now.Add(auth.StateTTL + time.Minute) })
	assert.True(t, errors.Is(signer.Verify(state), auth.ErrInvalidState))
}
