package commands

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/types/events"
)

// HandlerFunc handles one parsed command. args is the raw text after the
// command name.
type HandlerFunc func(ctx context.Context, client *whatsmeow.Client, msg *events.Message, args string) error

// Registry maps command names to handlers. It is populated once at startup
// and read-only afterwards, so lookups need no locking.
type Registry struct {
	handlers map[string]HandlerFunc
	log      zerolog.Logger
	reply    func(ctx context.Context, client *whatsmeow.Client, msg *events.Message, text string)
}

func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		handlers: make(map[string]HandlerFunc),
		log:      logger,
		reply:    SendReply,
	}
}

func (r *Registry) Register(name string, handler HandlerFunc) {
	r.handlers[strings.ToLower(name)] = handler
}

// Names returns the registered command names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch routes one incoming message. Non-command messages are ignored,
// unknown commands get a fixed not-found reply, and a panicking handler is
// contained so one bad command cannot take the dispatcher down.
func (r *Registry) Dispatch(ctx context.Context, client *whatsmeow.Client, msg *events.Message) {
	name, args, ok := ParseCommand(ExtractText(msg))
	if !ok {
		return
	}

	handler, found := r.handlers[name]
	if !found {
		r.reply(ctx, client, msg, fmt.Sprintf("Command %q not found. Try !menu.", name))
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error().Interface("panic", rec).Str("command", name).Msg("command handler panicked")
		}
	}()

	if err := handler(ctx, client, msg, args); err != nil {
		r.log.Error().Err(err).Str("command", name).Msg("command failed")
	}
}

// ExtractText pulls the plain text out of a message, empty when the message
// carries no text.
func ExtractText(msg *events.Message) string {
	if msg == nil || msg.Message == nil {
		return ""
	}
	if t := msg.Message.GetConversation(); t != "" {
		return t
	}
	if ext := msg.Message.GetExtendedTextMessage(); ext != nil {
		return ext.GetText()
	}
	return ""
}
