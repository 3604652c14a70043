package commands

import (
	"context"
	"fmt"
	"strings"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/types/events"

	"blacksky-md/core"
)

func onOff(v bool) string {
	if v {
		return "✅ ON"
	}
	return "❌ OFF"
}

// HandleMenu lists the registered commands and the current toggles.
func (r *Registry) HandleMenu(ctx context.Context, client *whatsmeow.Client, msg *events.Message, args string) error {
	settings := core.GetSettings()

	var b strings.Builder
	b.WriteString("╔═══════════════════════\n")
	b.WriteString("║ 🤖 BOT MENU\n")
	b.WriteString("╚═══════════════════════\n\n")
	b.WriteString(fmt.Sprintf("Auto Online: %s  (!online on/off)\n", onOff(settings.AutoOnline)))
	b.WriteString(fmt.Sprintf("Auto Typing: %s  (!typing on/off)\n\n", onOff(settings.AutoTyping)))
	b.WriteString("Commands:\n")
	for _, name := range r.Names() {
		b.WriteString("• !" + name + "\n")
	}

	SendReply(ctx, client, msg, b.String())
	return nil
}

// HandleStatus summarizes the feature toggles.
func HandleStatus(ctx context.Context, client *whatsmeow.Client, msg *events.Message, args string) error {
	settings := core.GetSettings()
	statusText := fmt.Sprintf(
		"📊 STATUS:\n\n🌐 Auto Online: %s\n🖊️ Auto Typing: %s",
		onOff(settings.AutoOnline), onOff(settings.AutoTyping))
	SendReply(ctx, client, msg, statusText)
	return nil
}
