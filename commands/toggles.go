package commands

import (
	"context"
	"fmt"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/types/events"

	"blacksky-md/core"
)

func parseToggle(args string) (bool, error) {
	switch args {
	case "on":
		return true, nil
	case "off":
		return false, nil
	default:
		return false, fmt.Errorf("expected \"on\" or \"off\", got %q", args)
	}
}

func HandleOnline(ctx context.Context, client *whatsmeow.Client, msg *events.Message, args string) error {
	val, err := parseToggle(args)
	if err != nil {
		SendReply(ctx, client, msg, "Usage: !online on/off")
		return nil
	}
	core.UpdateSettings(&val, nil)
	if val {
		SendReply(ctx, client, msg, "✅ Auto Online enabled")
	} else {
		SendReply(ctx, client, msg, "❌ Auto Online disabled")
	}
	return nil
}

func HandleTyping(ctx context.Context, client *whatsmeow.Client, msg *events.Message, args string) error {
	val, err := parseToggle(args)
	if err != nil {
		SendReply(ctx, client, msg, "Usage: !typing on/off")
		return nil
	}
	core.UpdateSettings(nil, &val)
	if val {
		SendReply(ctx, client, msg, "✅ Auto Typing enabled")
	} else {
		SendReply(ctx, client, msg, "❌ Auto Typing disabled")
	}
	return nil
}

func HandleBot(ctx context.Context, client *whatsmeow.Client, msg *events.Message, args string) error {
	SendReply(ctx, client, msg, "Bot is up 🤖")
	return nil
}

// RegisterBuiltins wires the default command set into r.
func RegisterBuiltins(r *Registry) {
	r.Register("ping", HandlePing)
	r.Register("menu", r.HandleMenu)
	r.Register("status", HandleStatus)
	r.Register("online", HandleOnline)
	r.Register("typing", HandleTyping)
	r.Register("bot", HandleBot)
}
