package whatsapp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"
)

func privateMessage(chat types.JID, msg *waE2E.Message) *events.Message {
	return &events.Message{
		Info: types.MessageInfo{
			MessageSource: types.MessageSource{Chat: chat, Sender: chat},
		},
		Message: msg,
	}
}

func TestIncomingText(t *testing.T) {
	user := types.NewJID("5511999990001", types.DefaultUserServer)

	owner, text, ok := incomingText(privateMessage(user, &waE2E.Message{Conversation: proto.String("  amanhã às 10 dentista ")}))
	require.True(t, ok)
	assert.Equal(t, "5511999990001@s.whatsapp.net", owner)
	assert.Equal(t, "amanhã às 10 dentista", text)

	extended := &waE2E.Message{ExtendedTextMessage: &waE2E.ExtendedTextMessage{Text: proto.String("/lembretes")}}
	_, text, ok = incomingText(privateMessage(user, extended))
	require.True(t, ok)
	assert.Equal(t, "/lembretes", text)

	// Il device del mittente non fa parte dell'owner
	withDevice := user
	withDevice.Device = 3
	owner, _, ok = incomingText(privateMessage(withDevice, &waE2E.Message{Conversation: proto.String("oi")}))
	require.True(t, ok)
	assert.Equal(t, "5511999990001@s.whatsapp.net", owner)
}

func TestIncomingTextIgnored(t *testing.T) {
	user := types.NewJID("5511999990001", types.DefaultUserServer)
	text := &waE2E.Message{Conversation: proto.String("oi")}

	group := privateMessage(types.NewJID("120363000000000000", types.GroupServer), text)
	group.Info.IsGroup = true

	fromMe := privateMessage(user, text)
	fromMe.Info.IsFromMe = true

	status := privateMessage(types.StatusBroadcastJID, text)

	image := privateMessage(user, &waE2E.Message{ImageMessage: &waE2E.ImageMessage{}})

	for name, evt := range map[string]*events.Message{
		"group":     group,
		"from me":   fromMe,
		"status":    status,
		"no text":   image,
		"nil event": nil,
	} {
		t.Run(name, func(t *testing.T) {
			_, _, ok := incomingText(evt)
			assert.False(t, ok)
		})
	}
}

func TestRecipientJID(t *testing.T) {
	jid, err := recipientJID("5511999990001@s.whatsapp.net")
	require.NoError(t, err)
	assert.Equal(t, types.NewJID("5511999990001", types.DefaultUserServer), jid)

	jid, err = recipientJID("+5511999990001")
	require.NoError(t, err)
	assert.Equal(t, "5511999990001@s.whatsapp.net", jid.String())

	_, err = recipientJID(" ")
	assert.Error(t, err)
}
