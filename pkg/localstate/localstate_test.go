package localstate

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsExpired(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		storedAt time.Time
		ttl      time.Duration
		want     bool
	}{
		{name: "fresh", storedAt: now.Add(-time.Hour), ttl: NicknameTTL, want: false},
		{name: "exactly ttl", storedAt: now.Add(-NicknameTTL), ttl: NicknameTTL, want: false},
		{name: "past ttl", storedAt: now.Add(-NicknameTTL - time.Second), ttl: NicknameTTL, want: true},
		{name: "zero timestamp", ttl: NicknameTTL, want: true},
		{name: "no ttl", storedAt: now.Add(-1000 * time.Hour), ttl: 0, want: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := IsExpired(Stored[string]{Value: "neo", StoredAt: tc.storedAt}, now, tc.ttl)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestFileStoreRoundTripAndExpiry(t *testing.T) {
	fs, err := NewFileStore(t.TempDir(), NicknameTTL)
	require.NoError(t, err)

	clock := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	fs.now = func() time.Time { return clock }

	require.NoError(t, fs.Save("nickname", "trinity"))
	got, ok := fs.Load("nickname")
	require.True(t, ok)
	assert.Equal(t, "trinity", got)

	clock = clock.Add(25 * time.Hour)
	_, ok = fs.Load("nickname")
	assert.False(t, ok)

	_, err = os.Stat(fs.path("nickname"))
	assert.True(t, os.IsNotExist(err), "expired value should be removed")
}

func TestFileStoreCorruptValue(t *testing.T) {
	fs, err := NewFileStore(t.TempDir(), NicknameTTL)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(fs.path("nickname"), []byte("{not json"), 0o600))

	_, ok := fs.Load("nickname")
	assert.False(t, ok)
	assert.NoError(t, fs.Clear("nickname"))
}
