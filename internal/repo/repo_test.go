package repo

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCountries(t *testing.T) {
	assert.Equal(t, []string{"DE", "GB", "US"}, ParseCountries(" us,gb , DE,,us"))
	assert.Empty(t, ParseCountries(""))
	assert.Equal(t, "DE,GB", JoinCountries([]string{"gb", "de", "GB"}))
}

func TestNotFound(t *testing.T) {
	err := notFound(sql.ErrNoRows, "payout")
	assert.True(t, errors.Is(err, ErrNotFound))

	other := notFound(errors.New("boom"), "payout")
	assert.False(t, errors.Is(other, ErrNotFound))
	assert.Contains(t, other.Error(), "boom")
}

func TestIsTransient(t *testing.T) {
	serial := fmt.Errorf("commit: %w", &pq.Error{Code: "40001"})
	assert.True(t, IsTransient(serial))
	assert.True(t, IsTransient(&pq.Error{Code: "40P01"}))
	assert.False(t, IsTransient(&pq.Error{Code: "23505"}))
	assert.False(t, IsTransient(ErrNotFound))
}

func TestDetailsRoundTrip(t *testing.T) {
	raw, err := encodeDetails(nil)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(raw))

	raw, err = encodeDetails(map[string]string{"wallet": "0xabc"})
	require.NoError(t, err)
	details, err := decodeDetails(raw)
	require.NoError(t, err)
	assert.Equal(t, "0xabc", details["wallet"])

	empty, err := decodeDetails(nil)
	require.NoError(t, err)
	assert.NotNil(t, empty)
}
