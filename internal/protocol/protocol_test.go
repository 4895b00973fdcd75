package protocol

import (
	"encoding/json"
	"testing"

	"github.com/archipelago-mw/aprs-server/internal/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeConnectAutoWrapsSingleObject(t *testing.T) {
	frame := []byte(`{"cmd":"Connect","game":"G","name":"A","uuid":"1","version":{"major":0,"minor":5,"build":1},"items_handling":0,"tags":[],"slot_data":true}`)
	msgs, err := DecodeClientMessages(frame)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	c, ok := msgs[0].(Connect)
	require.True(t, ok)
	assert.Equal(t, "G", c.Game)
	assert.Equal(t, Uuid("1"), c.Uuid)
	assert.True(t, c.SlotData)
}

func TestDecodeUuidAcceptsNumberOrString(t *testing.T) {
	frame := []byte(`[{"cmd":"Connect","game":"G","name":"A","uuid":42,"version":{"major":0,"minor":5,"build":1},"items_handling":0,"tags":[],"slot_data":false}]`)
	msgs, err := DecodeClientMessages(frame)
	require.NoError(t, err)
	c := msgs[0].(Connect)
	assert.Equal(t, Uuid("42"), c.Uuid)
}

func TestDecodeSlotIdAcceptsNumberOrString(t *testing.T) {
	var numeric SlotId
	require.NoError(t, json.Unmarshal([]byte(`7`), &numeric))
	assert.Equal(t, SlotId(7), numeric)

	var stringy SlotId
	require.NoError(t, json.Unmarshal([]byte(`"7"`), &stringy))
	assert.Equal(t, SlotId(7), stringy)
}

func TestDecodeSetUsesOTagNotCmd(t *testing.T) {
	frame := []byte(`{"o":"Set","key":"k","default":0,"operations":[{"operation":"add","value":5}]}`)
	msgs, err := DecodeClientMessages(frame)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	s, ok := msgs[0].(Set)
	require.True(t, ok)
	assert.Equal(t, "k", s.Key)
	assert.True(t, s.WantReply, "want_reply must default to true when absent")
	require.Len(t, s.Operations, 1)
	assert.Equal(t, "add", s.Operations[0].Operation)
}

func TestDecodeUnknownCmdPreservedOpaque(t *testing.T) {
	frame := []byte(`{"cmd":"SomeFutureThing","extra":1}`)
	msgs, err := DecodeClientMessages(frame)
	require.NoError(t, err)
	u, ok := msgs[0].(Unknown)
	require.True(t, ok)
	assert.Equal(t, "SomeFutureThing", u.Cmd)
}

func TestEncodeServerMessagesArrayEnvelope(t *testing.T) {
	out, err := EncodeServerMessages(ConnectionRefused{Errors: []ConnectionError{ErrInvalidPassword}})
	require.NoError(t, err)

	var arr []map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &arr))
	require.Len(t, arr, 1)
	assert.Equal(t, "ConnectionRefused", arr[0]["cmd"])
}

func TestNetworkSlotMarshalIncludesClassDiscriminator(t *testing.T) {
	b, err := json.Marshal(NetworkSlot{Name: "Alice", Game: "G", Type: SlotTypePlayer})
	require.NoError(t, err)
	var obj map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &obj))
	assert.Equal(t, "NetworkSlot", obj["class"])
}

func TestSetDefaultValueDecodesThroughValueJSON(t *testing.T) {
	frame := []byte(`{"o":"Set","key":"k","default":{"a":1,"b":[1,2,3]},"operations":[]}`)
	msgs, err := DecodeClientMessages(frame)
	require.NoError(t, err)
	s := msgs[0].(Set)
	assert.Equal(t, value.KindDict, s.Default.Kind())
}
