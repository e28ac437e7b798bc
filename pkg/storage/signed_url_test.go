package storage

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignedURLSignerGenerateAndParse(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, expiresAt, err := signer.Generate("contract-1", "contract-1/lecturer.png")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.False(t, expiresAt.IsZero())

	subject, path, parsedExpiry, err := signer.Parse(token)
	require.NoError(t, err)
	require.Equal(t, "contract-1", subject)
	require.Equal(t, "contract-1/lecturer.png", path)
	require.WithinDuration(t, expiresAt, parsedExpiry, time.Second)
}

func TestSignedURLSignerExpired(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Minute)
	base := time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC)
	signer.now = func() time.Time { return base }
	token, _, err := signer.Generate("contract-1", "contract-1/lecturer.png")
	require.NoError(t, err)

	signer.now = func() time.Time { return base.Add(2 * time.Minute) }
	_, _, _, err = signer.Parse(token)
	require.True(t, errors.Is(err, ErrInvalidToken))
}

func TestSignedURLSignerTampered(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, _, err := signer.Generate("contract-1", "contract-1/lecturer.png")
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	parts[0] = "contract-2"
	_, _, _, err = signer.Parse(strings.Join(parts, "."))
	require.True(t, errors.Is(err, ErrInvalidToken))

	other := NewSignedURLSigner("other-secret", time.Hour)
	_, _, _, err = other.Parse(token)
	require.Error(t, err)
}

func TestSignedURLSignerRejectsBadInput(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	_, _, err := signer.Generate("", "x")
	require.Error(t, err)
	_, _, err = signer.Generate("a.b", "x")
	require.Error(t, err)
	_, _, err = NewSignedURLSigner("", time.Hour).Generate("contract-1", "x")
	require.Error(t, err)
}
