package model

import (
	"errors"
	"testing"

	"PChat/tools/errs"

	"github.com/stretchr/testify/require"
)

func TestIntentValidate(t *testing.T) {
	cases := []struct {
		name string
		in   MessageIntent
		ok   bool
	}{
		{"direct text", MessageIntent{Sender: "a", Recipient: "b", Type: MessageText, Content: "hi"}, true},
		{"channel file", MessageIntent{Sender: "a", ChannelID: "c1", Type: MessageFile, FileURL: "u/f"}, true},
		{"channel voice", MessageIntent{Sender: "a", ChannelID: "c1", Type: MessageVoice, VoiceURL: "u/v"}, true},
		{"missing sender", MessageIntent{Recipient: "b", Type: MessageText, Content: "hi"}, false},
		{"no target", MessageIntent{Sender: "a", Type: MessageText, Content: "hi"}, false},
		{"both targets", MessageIntent{Sender: "a", Recipient: "b", ChannelID: "c1", Type: MessageText, Content: "hi"}, false},
		{"unknown type", MessageIntent{Sender: "a", Recipient: "b", Type: "sticker", Content: "x"}, false},
		{"text without content", MessageIntent{Sender: "a", Recipient: "b", Type: MessageText}, false},
		{"text with fileUrl", MessageIntent{Sender: "a", Recipient: "b", Type: MessageText, FileURL: "u"}, false},
		{"two payloads", MessageIntent{Sender: "a", Recipient: "b", Type: MessageText, Content: "hi", FileURL: "u"}, false},
		{"file with content only", MessageIntent{Sender: "a", Recipient: "b", Type: MessageFile, Content: "hi"}, false},
		{"voice with fileUrl only", MessageIntent{Sender: "a", ChannelID: "c1", Type: MessageVoice, FileURL: "u"}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.in.Validate()
			if tc.ok {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.True(t, errors.Is(err, errs.ErrValidation), "want validation error, got %v", err)
		})
	}
}

func TestMessageHelpers(t *testing.T) {
	m := &Message{Sender: "a", Recipient: "b", Type: MessageText, Content: "hello"}
	require.True(t, m.IsDirect())
	require.Equal(t, "b", m.PeerOf("a"))
	require.Equal(t, "a", m.PeerOf("b"))
	require.Equal(t, "hello", m.Preview())

	f := &Message{Sender: "a", ChannelID: "c1", Type: MessageFile, FileURL: "u"}
	require.False(t, f.IsDirect())
	require.Equal(t, "[file]", f.Preview())
	require.Equal(t, "[voice]", (&Message{Type: MessageVoice}).Preview())
}

func TestChannelHasMember(t *testing.T) {
	ch := &Channel{ID: "c1", Members: []string{"x", "y"}}
	require.True(t, ch.HasMember("x"))
	require.False(t, ch.HasMember("z"))
}
