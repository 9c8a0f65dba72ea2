package password

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHash(t *testing.T) {
	tests := []struct {
		name    string
		secret  string
		wantErr error
	}{
		{name: "random api key", secret: "b0t-k3y-5c1b0b7a9f"},
		{name: "special chars", secret: "p@ss!#$%^&*()"},
		{name: "empty", secret: "", wantErr: ErrEmptySecret},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := Hash(tt.secret)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotEqual(t, tt.secret, hash)
			assert.NoError(t, Verify(hash, tt.secret))
		})
	}
}

func TestVerify(t *testing.T) {
	hash, err := Hash("correct_key")
	require.NoError(t, err)

	tests := []struct {
		name    string
		hash    string
		secret  string
		wantErr error
	}{
		{name: "match", hash: hash, secret: "correct_key"},
		{name: "wrong key", hash: hash, secret: "wrong_key", wantErr: ErrMismatch},
		{name: "empty key", hash: hash, secret: "", wantErr: ErrEmptySecret},
		{name: "access disabled", hash: "", secret: "correct_key", wantErr: ErrEmptySecret},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Verify(tt.hash, tt.secret)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestVerify_MalformedHash(t *testing.T) {
	err := Verify("not-a-bcrypt-hash", "key")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMismatch)
}
