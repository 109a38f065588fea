package roles

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	svc := NewTokenService("test-secret", time.Hour)

	u := &User{Username: "hassan"}
	require.NoError(t, u.Bind(&Citizen{User: u}))

	token, err := svc.Issue(u)
	require.NoError(t, err)

	claims, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "hassan", claims.Username)
	assert.Equal(t, RoleCitizen, claims.Role)

	// The Bearer prefix is tolerated.
	claims, err = svc.Verify("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, "hassan", claims.Username)
}

func TestTokenRejectsBadSecretAndExpiry(t *testing.T) {
	svc := NewTokenService("test-secret", time.Hour)
	u := &User{Username: "hassan"}
	token, err := svc.Issue(u)
	require.NoError(t, err)

	other := NewTokenService("other-secret", time.Hour)
	_, err = other.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	// NewTokenService clamps non-positive TTLs, so build the expired
	// issuer directly.
	short := &TokenService{secret: []byte("test-secret"), ttl: -time.Minute}
	stale, err := short.Issue(u)
	require.NoError(t, err)
	_, err = svc.Verify(stale)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.Verify("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
