package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignedURLSignerSignAndVerify(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, signed, err := signer.Sign("exp-1", "weekly/2024-01-01.csv")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	file, err := signer.Verify(token, false)
	require.NoError(t, err)
	require.Equal(t, "exp-1", file.ExportID)
	require.Equal(t, "weekly/2024-01-01.csv", file.Path)
	require.True(t, signed.ExpiresAt.Equal(file.ExpiresAt))
}

func TestSignedURLSignerExpired(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Minute)
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	signer.now = func() time.Time { return base }
	token, _, err := signer.Sign("exp-1", "weekly/file.pdf")
	require.NoError(t, err)

	signer.now = func() time.Time { return base.Add(2 * time.Minute) }
	_, err = signer.Verify(token, false)
	require.ErrorIs(t, err, ErrTokenExpired)

	file, err := signer.Verify(token, true)
	require.NoError(t, err)
	require.Equal(t, "weekly/file.pdf", file.Path)
}

func TestSignedURLSignerRejectsTampering(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, _, err := signer.Sign("exp-1", "weekly/file.csv")
	require.NoError(t, err)

	_, err = NewSignedURLSigner("other", time.Hour).Verify(token, false)
	require.ErrorIs(t, err, ErrTokenInvalid)

	_, err = signer.Verify("a.b.c", false)
	require.ErrorIs(t, err, ErrTokenInvalid)
}
