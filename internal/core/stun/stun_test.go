package stun

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-dice/pkg/types"
)

func TestBindingRoundTrip(t *testing.T) {
	id, req, err := NewBindingRequest()
	require.NoError(t, err)
	assert.True(t, IsMessage(req))

	got, ok := IsBindingRequest(req)
	require.True(t, ok)
	assert.Equal(t, id, got)

	observed, err := types.ParseNetworkAddress("198.51.100.4:40001")
	require.NoError(t, err)
	resp, err := NewBindingResponse(id, observed)
	require.NoError(t, err)

	rid, addr, err := ParseBindingResponse(resp)
	require.NoError(t, err)
	assert.Equal(t, id, rid)
	assert.Equal(t, observed, addr)
}

func TestParseBindingResponse_RejectsRequest(t *testing.T) {
	_, req, err := NewBindingRequest()
	require.NoError(t, err)
	_, _, err = ParseBindingResponse(req)
	assert.ErrorIs(t, err, ErrNotBindingResponse)
}

func TestIsMessage_DiceTraffic(t *testing.T) {
	assert.False(t, IsMessage([]byte("DICE\x01rest-of-envelope-bytes")))
	assert.False(t, IsMessage(nil))
}
