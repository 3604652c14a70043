package commands

import (
	"context"

	"go.mau.fi/whatsmeow"
	waProto "go.mau.fi/whatsmeow/binary/proto"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"
)

// SendReply sends text as a quoted reply to msg.
func SendReply(ctx context.Context, client *whatsmeow.Client, msg *events.Message, text string) {
	replyMsg := &waProto.Message{
		ExtendedTextMessage: &waProto.ExtendedTextMessage{
			Text: proto.String(text),
			ContextInfo: &waProto.ContextInfo{
				StanzaID:    proto.String(msg.Info.ID),
				Participant: proto.String(msg.Info.Sender.String()),
			},
		},
	}
	client.SendMessage(ctx, msg.Info.Chat, replyMsg)
}

func sendReaction(ctx context.Context, client *whatsmeow.Client, chatJID types.JID, messageID string, emoji string) {
	reactionMsg := &waProto.Message{
		ReactionMessage: &waProto.ReactionMessage{
			Text: proto.String(emoji),
			Key: &waProto.MessageKey{
				RemoteJID: proto.String(chatJID.String()),
				ID:        proto.String(messageID),
			},
		},
	}
	client.SendMessage(ctx, chatJID, reactionMsg)
}
