package features

import (
	"context"
	"math/rand"
	"time"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	"blacksky-md/core"
)

// HandleAutoPresence shows a typing indicator for incoming chats when the
// auto-typing toggle is on.
func HandleAutoPresence(client *whatsmeow.Client, msg *events.Message) {
	if !core.GetSettings().AutoTyping {
		return
	}
	if msg.Info.Chat.String() == "status@broadcast" {
		return
	}
	if msg.Info.IsFromMe {
		return
	}

	go sendAutoTyping(context.Background(), client, msg.Info.Chat)
}

func sendAutoTyping(ctx context.Context, client *whatsmeow.Client, chat types.JID) {
	delay := time.Duration(500+rand.Intn(1000)) * time.Millisecond
	time.Sleep(delay)

	err := client.SendChatPresence(ctx, chat, types.ChatPresenceComposing, types.ChatPresenceMediaText)
	if err != nil {
		return
	}

	time.Sleep(5 * time.Second)
	client.SendChatPresence(ctx, chat, types.ChatPresencePaused, types.ChatPresenceMediaText)
}
