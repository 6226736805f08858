package authtoken

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testService(policy RefreshPolicy) *Service {
	return NewService(HMACKey([]byte("secret")), "skreaver-test", time.Hour, policy)
}

func TestIssueAndValidateRoundTrip(t *testing.T) {
	svc := testService(RefreshDisabled{})

	token, err := svc.Issue("agent-1", "Agent One", "access", "jti-1", WithRoles("operator"))
	require.NoError(t, err)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "agent-1", claims.Subject)
	assert.Equal(t, "skreaver-test", claims.Issuer)
	assert.Equal(t, []string{"operator"}, claims.Roles)
}

func TestValidateRejectsWrongSigningKey(t *testing.T) {
	issuer := testService(RefreshDisabled{})
	verifier := NewService(HMACKey([]byte("other-secret")), "skreaver-test", time.Hour, RefreshDisabled{})

	token, err := issuer.Issue("agent-1", "", "access", "jti-1")
	require.NoError(t, err)

	_, err = verifier.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsRevokedToken(t *testing.T) {
	svc := testService(RefreshDisabled{})
	token, err := svc.Issue("agent-1", "", "access", "jti-revoked")
	require.NoError(t, err)

	svc.Revoke("jti-revoked", time.Now().Add(time.Hour))

	_, err = svc.Validate(token)
	assert.ErrorIs(t, err, ErrRevoked)
}

func TestValidateRejectsNotYetValidToken(t *testing.T) {
	svc := testService(RefreshDisabled{})
	token, err := svc.Issue("agent-1", "", "access", "jti-1", WithNotBefore(time.Now().Add(time.Hour)))
	require.NoError(t, err)

	_, err = svc.Validate(token)
	assert.ErrorIs(t, err, ErrNotBeforeReady)
}

func TestRefreshDisabledRejectsRefresh(t *testing.T) {
	svc := testService(RefreshDisabled{})
	claims := &Claims{}
	claims.Subject = "agent-1"

	_, err := svc.Refresh(claims, "jti-2")
	assert.Error(t, err)
}

func TestRefreshManualCarriesClaimsForward(t *testing.T) {
	svc := testService(RefreshManual{})
	token, err := svc.Issue("agent-1", "Agent One", "access", "jti-1", WithRoles("operator"), WithCustom("team", "core"))
	require.NoError(t, err)

	claims, err := svc.Validate(token)
	require.NoError(t, err)

	refreshed, err := svc.Refresh(claims, "jti-2")
	require.NoError(t, err)

	newClaims, err := svc.Validate(refreshed)
	require.NoError(t, err)
	assert.Equal(t, []string{"operator"}, newClaims.Roles)
	assert.Equal(t, "core", newClaims.Custom["team"])
	assert.Equal(t, "jti-2", newClaims.ID)
}

func TestShouldAutoRefreshWithinWindow(t *testing.T) {
	svc := testService(RefreshAutomatic{WindowMinutes: 10})
	token, err := svc.Issue("agent-1", "", "access", "jti-1")
	require.NoError(t, err)

	claims, err := svc.Validate(token)
	require.NoError(t, err)

	// ttl is 1h, window is 10m: not yet within the refresh window.
	assert.False(t, svc.ShouldAutoRefresh(claims))

	svcShortTTL := NewService(HMACKey([]byte("secret")), "skreaver-test", 5*time.Minute, RefreshAutomatic{WindowMinutes: 10})
	token2, err := svcShortTTL.Issue("agent-1", "", "access", "jti-2")
	require.NoError(t, err)
	claims2, err := svcShortTTL.Validate(token2)
	require.NoError(t, err)
	assert.True(t, svcShortTTL.ShouldAutoRefresh(claims2))
}

func TestEvictExpiredRevocations(t *testing.T) {
	svc := testService(RefreshDisabled{})
	svc.Revoke("jti-old", time.Now().Add(-time.Minute))
	svc.Revoke("jti-fresh", time.Now().Add(time.Hour))

	svc.EvictExpiredRevocations(time.Now())

	assert.False(t, svc.isRevoked("jti-old"))
	assert.True(t, svc.isRevoked("jti-fresh"))
}
