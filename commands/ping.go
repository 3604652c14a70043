package commands

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/types/events"
)

var BotStartTime = time.Now()

func getSystemInfo() (goroutines int, usedMB uint64) {
	goroutines = runtime.NumGoroutine()

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	usedMB = m.Alloc / 1024 / 1024
	return
}

func getUptime() string {
	uptimeSecs := time.Since(BotStartTime).Seconds()

	hours := int(uptimeSecs) / 3600
	mins := (int(uptimeSecs) % 3600) / 60
	secs := int(uptimeSecs) % 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, mins, secs)
	} else if mins > 0 {
		return fmt.Sprintf("%dm %ds", mins, secs)
	}
	return fmt.Sprintf("%ds", secs)
}

func HandlePing(ctx context.Context, client *whatsmeow.Client, msg *events.Message, args string) error {
	start := time.Now()

	goroutines, usedMB := getSystemInfo()
	uptime := getUptime()

	pingText := fmt.Sprintf(
		"*🏓 PONG!*\n\n"+
			"Response: `%dms`\n"+
			"CPU cores: `%d`\n"+
			"Goroutines: `%d`\n"+
			"Memory used: `%d MB`\n"+
			"Uptime: `%s`",
		time.Since(start).Milliseconds(),
		runtime.NumCPU(),
		goroutines,
		usedMB,
		uptime)

	SendReply(ctx, client, msg, pingText)
	go sendReaction(ctx, client, msg.Info.Chat, msg.Info.ID, "🏓")
	return nil
}
