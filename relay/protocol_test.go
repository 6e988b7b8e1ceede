package relay

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionUpdateShape(t *testing.T) {
	data, err := json.Marshal(newSessionUpdate())
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, "session.update", decoded["type"])
	assert.True(t, strings.HasPrefix(decoded["event_id"].(string), "event_"))

	sess := decoded["session"].(map[string]interface{})
	assert.Equal(t, []interface{}{"text", "audio"}, sess["modalities"])
	assert.Equal(t, "Ethan", sess["voice"])
	assert.Equal(t, "pcm16", sess["input_audio_format"])
	assert.Equal(t, "pcm16", sess["output_audio_format"])

	transcription := sess["input_audio_transcription"].(map[string]interface{})
	assert.Equal(t, "gummy-realtime-v1", transcription["model"])

	// turn_detection must be present, and null.
	val, present := sess["turn_detection"]
	require.True(t, present)
	assert.Nil(t, val)
}

func TestErrorPayloadShape(t *testing.T) {
	data, err := json.Marshal(newErrorPayload(CodeProxyError, "Upstream service error"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"error","error":{"message":"Upstream service error","code":"PROXY_ERROR"}}`, string(data))
}

func TestSniffType(t *testing.T) {
	typ, ok := sniffType([]byte(`{"type":"session.update","session":{}}`))
	assert.True(t, ok)
	assert.Equal(t, "session.update", typ)

	typ, ok = sniffType([]byte(`{"other":"field"}`))
	assert.True(t, ok)
	assert.Equal(t, "", typ)

	typ, ok = sniffType([]byte{0xff, 0x00, 0x12})
	assert.False(t, ok)
	assert.Equal(t, "", typ)
}
