package jwt

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test_secret_key_1234567890_abcdef"

func newTestMaker(t *testing.T) *Maker {
	t.Helper()
	m, err := NewMaker(testSecret, 15*time.Minute, 7*24*time.Hour)
	require.NoError(t, err)
	return m
}

func TestNewMaker_RejectsWeakSecret(t *testing.T) {
	_, err := NewMaker("short", time.Minute, time.Hour)
	assert.ErrorIs(t, err, ErrWeakSecret)
}

func TestMaker_IssueAndParse(t *testing.T) {
	m := newTestMaker(t)

	tests := []struct {
		name       string
		userID     string
		telegramID int64
	}{
		{name: "regular user", userID: "9b1deb4d-3b7d-4bad-9bdd-2b0d7b3dcb6d", telegramID: 123456789},
		{name: "large telegram id", userID: "1b9d6bcd-bbfd-4b2d-9b5d-ab8dfbbd4bed", telegramID: 7000000000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pair, err := m.IssuePair(tt.userID, tt.telegramID)
			require.NoError(t, err)
			assert.Equal(t, int64(900), pair.ExpiresIn)

			access, err := m.ParseAccess(pair.AccessToken)
			require.NoError(t, err)
			assert.Equal(t, tt.userID, access.UserID())
			assert.Equal(t, tt.telegramID, access.TelegramID)
			assert.WithinDuration(t, time.Now().Add(15*time.Minute), access.ExpiresAt.Time, time.Second)

			refresh, err := m.ParseRefresh(pair.RefreshToken)
			require.NoError(t, err)
			assert.Equal(t, tt.userID, refresh.UserID())
			assert.NotEmpty(t, refresh.ID)
		})
	}
}

func TestMaker_RefreshIDsAreUnique(t *testing.T) {
	m := newTestMaker(t)
	p1, err := m.IssuePair("u", 1)
	require.NoError(t, err)
	p2, err := m.IssuePair("u", 1)
	require.NoError(t, err)

	r1, err := m.ParseRefresh(p1.RefreshToken)
	require.NoError(t, err)
	r2, err := m.ParseRefresh(p2.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, r1.ID, r2.ID)
}

func TestMaker_TypeConfusion(t *testing.T) {
	m := newTestMaker(t)
	pair, err := m.IssuePair("u", 1)
	require.NoError(t, err)

	_, err = m.ParseAccess(pair.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	_, err = m.ParseRefresh(pair.AccessToken)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestMaker_Expired(t *testing.T) {
	issuedAt := time.Now().Add(-time.Hour)
	m := newTestMaker(t).WithClock(func() time.Time { return issuedAt })
	pair, err := m.IssuePair("u", 1)
	require.NoError(t, err)

	m.WithClock(time.Now)
	_, err = m.ParseAccess(pair.AccessToken)
	assert.ErrorIs(t, err, ErrTokenExpired)

	// refresh живёт неделю, поэтому ещё валиден
	_, err = m.ParseRefresh(pair.RefreshToken)
	assert.NoError(t, err)
}

func TestMaker_InvalidTokens(t *testing.T) {
	m := newTestMaker(t)
	pair, err := m.IssuePair("u", 1)
	require.NoError(t, err)

	other, err := NewMaker("another_secret_key_0987654321_zyxw", time.Minute, time.Hour)
	require.NoError(t, err)
	foreign, err := other.IssuePair("u", 1)
	require.NoError(t, err)

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, AccessClaims{
		Type: typeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, AccessClaims{
		Type: typeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	tampered := pair.AccessToken[:len(pair.AccessToken)-2] + "xx"
	if strings.HasSuffix(pair.AccessToken, "xx") {
		tampered = pair.AccessToken[:len(pair.AccessToken)-2] + "yy"
	}

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "garbage", token: "not.a.token"},
		{name: "tampered signature", token: tampered},
		{name: "foreign secret", token: foreign.AccessToken},
		{name: "alg none", token: noneToken},
		{name: "alg HS512", token: hs512},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.ParseAccess(tt.token)
			assert.ErrorIs(t, err, ErrTokenInvalid)
		})
	}
}
