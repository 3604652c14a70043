package commands

import (
	"strings"
)

// CommandPrefixes are the characters a command message may start with.
var CommandPrefixes = []string{"!", "."}

// ParseCommand extracts the command name and argument string from message
// text. Only prefixed messages are commands; the name is lower-cased for
// case-insensitive matching. Arguments are split on whitespace only, no
// quoting or escaping.
func ParseCommand(text string) (string, string, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", "", false
	}

	for _, prefix := range CommandPrefixes {
		if !strings.HasPrefix(text, prefix) {
			continue
		}
		parts := strings.Fields(strings.TrimPrefix(text, prefix))
		if len(parts) == 0 {
			return "", "", false
		}

		cmd := strings.ToLower(parts[0])
		args := ""
		if len(parts) > 1 {
			args = strings.Join(parts[1:], " ")
		}
		return cmd, args, true
	}

	return "", "", false
}
