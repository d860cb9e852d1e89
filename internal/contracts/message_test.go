package contracts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValidMessage_KnownTypes(t *testing.T) {
	msgs := []Message{
		IframeReady{},
		MarkdownContent{Text: "# Title"},
		Resize{Height: 640},
		HeadingVisible{ID: "intro"},
		ScrollToHeading{ID: "intro"},
		ScrollToHeadingFromIframe{ID: "intro"},
	}
	for _, msg := range msgs {
		data, err := Encode(msg)
		require.NoError(t, err)
		assert.True(t, IsValidMessage(data), "type %s", msg.Type())
	}
}

func TestIsValidMessage_Rejects(t *testing.T) {
	cases := map[string]string{
		"unknown type":    `{"type":"reload","payload":"x"}`,
		"missing type":    `{"payload":"x"}`,
		"numeric type":    `{"type":3}`,
		"wrong case":      `{"type":"Resize","payload":1}`,
		"array":           `[{"type":"resize"}]`,
		"string":          `"resize"`,
		"null":            `null`,
		"not json":        `type=resize`,
		"empty":           ``,
		"nested only":     `{"data":{"type":"resize"}}`,
		"scroll typo":     `{"type":"scrollToheading","payload":"a"}`,
		"null type value": `{"type":null}`,
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			assert.False(t, IsValidMessage([]byte(data)))
		})
	}
}

func TestIsValidMessage_IgnoresPayloadShape(t *testing.T) {
	assert.True(t, IsValidMessage([]byte(`{"type":"resize","payload":"tall"}`)))
}

func TestDecode_PayloadShape(t *testing.T) {
	_, err := Decode([]byte(`{"type":"resize","payload":"tall"}`))
	assert.ErrorIs(t, err, ErrInvalidMessage)

	_, err = Decode([]byte(`{"type":"heading-visible","payload":42}`))
	assert.ErrorIs(t, err, ErrInvalidMessage)

	_, err = Decode([]byte(`{"type":"markdown-content"}`))
	assert.ErrorIs(t, err, ErrInvalidMessage)

	_, err = Decode([]byte(`{"type":"resize","payload":null}`))
	assert.ErrorIs(t, err, ErrInvalidMessage)
}

func TestDecode_Variants(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"iframe-ready"}`))
	require.NoError(t, err)
	assert.Equal(t, IframeReady{}, msg)

	msg, err = Decode([]byte(`{"type":"iframe-ready","payload":null}`))
	require.NoError(t, err)
	assert.Equal(t, IframeReady{}, msg)

	msg, err = Decode([]byte(`{"type":"resize","payload":1280.5}`))
	require.NoError(t, err)
	assert.Equal(t, Resize{Height: 1280.5}, msg)

	msg, err = Decode([]byte(`{"type":"scrollToHeadingFromIframe","payload":"sub"}`))
	require.NoError(t, err)
	assert.Equal(t, ScrollToHeadingFromIframe{ID: "sub"}, msg)
}

func TestEncode_WireShape(t *testing.T) {
	data, err := Encode(MarkdownContent{Text: "# Title"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"markdown-content","payload":"# Title"}`, string(data))

	data, err = Encode(IframeReady{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"iframe-ready"}`, string(data))

	_, err = Encode(nil)
	assert.ErrorIs(t, err, ErrInvalidMessage)
}
