package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-dice/internal/core/endpoint"
	"github.com/dep2p/go-dice/internal/core/keys"
	"github.com/dep2p/go-dice/internal/core/record"
	"github.com/dep2p/go-dice/pkg/types"
)

func fixture(t *testing.T) (*keys.Keys, *record.Node) {
	t.Helper()
	k, err := keys.Generate()
	require.NoError(t, err)
	addr, err := types.ParseNetworkAddress("203.0.113.1:4000")
	require.NoError(t, err)
	n, err := record.Create(record.Fields{Endpoints: []endpoint.Endpoint{endpoint.Direct{Addr: addr}}, Generation: 1}, k)
	require.NoError(t, err)
	return k, n
}

func allBodies(t *testing.T, peer *record.Node) []Body {
	txid := types.NewTransactionID()
	src, err := types.ParseNetworkAddress("[2001:db8::7]:9000")
	require.NoError(t, err)
	return []Body{
		Noop{},
		Ping{TransactionID: txid},
		PingResponse{TransactionID: txid},
		Reflect{TransactionID: txid},
		ReflectResponse{TransactionID: txid, Address: src},
		Punch{TransactionID: txid, Target: peer.DiceAddress(), Source: src},
		PunchResponse{TransactionID: txid},
		Reveal{TransactionID: txid, Target: peer.DiceAddress(), Source: src},
		RevealResponse{TransactionID: txid},
		ListNodes{TransactionID: txid, Target: peer.DiceAddress(), Limit: 20},
		ListNodesResponse{TransactionID: txid, Nodes: []*record.Node{peer, peer}},
		ListNodesResponse{TransactionID: txid},
		PutData{Payload: []byte("hello dice")},
		Relay{Target: peer.DiceAddress(), Message: []byte{1, 2, 3}},
		Response{TransactionID: txid, Code: CodeRateLimited},
	}
}

func TestEnvelope_RoundTrip(t *testing.T) {
	k, n := fixture(t)
	_, peer := fixture(t)

	for _, body := range allBodies(t, peer) {
		t.Run(body.Tag().String(), func(t *testing.T) {
			raw, err := Encode(n, body, k)
			require.NoError(t, err)
			assert.True(t, IsMessage(raw))

			m, err := Decode(raw)
			require.NoError(t, err)
			assert.Equal(t, n.Checksum(), m.Node.Checksum())
			assert.Equal(t, body.Tag(), m.Body.Tag())
			assert.Equal(t, EncodeBody(body), EncodeBody(m.Body))
			assert.Equal(t, keys.Sum(raw), m.Checksum())
			assert.Equal(t, raw, m.Bytes())

			id, hasID := TransactionIDOf(body)
			gotID, gotHasID := TransactionIDOf(m.Body)
			assert.Equal(t, hasID, gotHasID)
			assert.Equal(t, id, gotID)
		})
	}
}

func TestDecode_ListNodesResponseCarriesRecords(t *testing.T) {
	k, n := fixture(t)
	_, peer := fixture(t)

	raw, err := Encode(n, ListNodesResponse{Nodes: []*record.Node{peer}}, k)
	require.NoError(t, err)
	m, err := Decode(raw)
	require.NoError(t, err)

	resp := m.Body.(ListNodesResponse)
	require.Len(t, resp.Nodes, 1)
	assert.Equal(t, peer.DiceAddress(), resp.Nodes[0].DiceAddress())
}

func TestDecode_RejectsTampering(t *testing.T) {
	k, n := fixture(t)
	raw, err := Encode(n, PutData{Payload: []byte("payload")}, k)
	require.NoError(t, err)

	// 任意一个字节被改动都不能通过
	for i := range raw {
		tampered := append([]byte(nil), raw...)
		tampered[i] ^= 0x01
		m, err := Decode(tampered)
		if err == nil {
			// 改动节点记录签名时可能恢复出另一个身份，但信封签名一定不匹配
			t.Fatalf("byte %d: tampered message accepted from %s", i, m.Node.DiceAddress())
		}
	}
}

func TestDecode_SignedByOtherKey(t *testing.T) {
	_, n := fixture(t)
	other, _ := fixture(t)

	raw, err := Encode(n, Noop{}, other)
	require.NoError(t, err)
	_, err = Decode(raw)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestDecode_Errors(t *testing.T) {
	k, n := fixture(t)
	raw, err := Encode(n, Ping{TransactionID: types.NewTransactionID()}, k)
	require.NoError(t, err)

	_, err = Decode([]byte("NOPE and more"))
	assert.ErrorIs(t, err, ErrBadMagic)

	_, err = Decode(raw[:len(raw)-1])
	assert.ErrorIs(t, err, ErrMalformed)

	v := append([]byte(nil), raw...)
	v[len(Magic)] = 9
	_, err = Decode(v)
	assert.ErrorIs(t, err, ErrUnsupportedVersion)

	_, err = DecodeBody([]byte{99})
	assert.ErrorIs(t, err, ErrUnknownTag)
}

func TestIsResponse(t *testing.T) {
	_, peer := fixture(t)
	responses := map[Tag]bool{
		TagPingResponse: true, TagReflectResponse: true, TagPunchResponse: true,
		TagRevealResponse: true, TagListNodesResponse: true, TagResponse: true,
	}
	for _, b := range allBodies(t, peer) {
		assert.Equal(t, responses[b.Tag()], IsResponse(b), b.Tag().String())
	}
	assert.True(t, CodeSuccessNoContent.OK())
	assert.False(t, CodeNotFound.OK())
	assert.Equal(t, "RATE_LIMITED", CodeRateLimited.String())
}

func TestRelay_WrapsLargestPayload(t *testing.T) {
	k, n := fixture(t)
	_, peer := fixture(t)

	inner, err := Encode(n, PutData{Payload: make([]byte, MaxPayload)}, k)
	require.NoError(t, err)
	require.Greater(t, len(inner), MaxPayload)

	raw, err := Encode(n, Relay{Target: peer.DiceAddress(), Message: inner}, k)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(raw), MaxSize)

	m, err := Decode(raw)
	require.NoError(t, err)
	relay, ok := m.Body.(Relay)
	require.True(t, ok)
	assert.Equal(t, inner, relay.Message)

	got, err := Decode(relay.Message)
	require.NoError(t, err)
	assert.Len(t, got.Body.(PutData).Payload, MaxPayload)
}

func TestEncode_DatagramLimit(t *testing.T) {
	k, n := fixture(t)
	assert.LessOrEqual(t, MaxSize, 65507)

	_, err := Encode(n, PutData{Payload: make([]byte, MaxSize)}, k)
	assert.ErrorIs(t, err, ErrTooLarge)
}
