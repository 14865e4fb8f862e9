package credential

import (
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	ring := keyring.NewArrayKeyring([]keyring.Item{
		{Key: "gmail/sales@example.com", Data: []byte("refresh-123")},
	})
	r := NewResolverWithKeyring(ring)
	t.Setenv("TRIAGE_TEST_TOKEN", "from-env")

	tests := []struct {
		name    string
		ref     string
		want    string
		wantErr bool
	}{
		{name: "empty", ref: "", want: ""},
		{name: "literal", ref: "plain-secret", want: "plain-secret"},
		{name: "keyring", ref: "keyring:gmail/sales@example.com", want: "refresh-123"},
		{name: "keyring miss", ref: "keyring:gmail/nobody@example.com", wantErr: true},
		{name: "env", ref: "env:TRIAGE_TEST_TOKEN", want: "from-env"},
		{name: "env miss", ref: "env:TRIAGE_TEST_UNSET", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(tt.ref)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStore(t *testing.T) {
	r := NewResolverWithKeyring(keyring.NewArrayKeyring(nil))
	require.NoError(t, r.Store("imap/ops@example.com", "pw"))

	got, err := r.Resolve("keyring:imap/ops@example.com")
	require.NoError(t, err)
	assert.Equal(t, "pw", got)
}
