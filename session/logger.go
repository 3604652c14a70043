package session

import (
	"fmt"
	"strings"

	waLog "go.mau.fi/whatsmeow/util/log"
)

// filteredLogger suppresses the noisy SessionCipher MAC verification and
// retry receipt errors whatsmeow emits on stale peer sessions. They are
// harmless and drown out real problems.
type filteredLogger struct {
	logger waLog.Logger
}

func newFilteredLogger(logger waLog.Logger) waLog.Logger {
	return &filteredLogger{logger: logger}
}

func (f *filteredLogger) Errorf(msg string, args ...interface{}) {
	formatted := fmt.Sprintf(msg, args...)
	if strings.Contains(formatted, "Failed to handle retry receipt") ||
		strings.Contains(formatted, "Unable to verify ciphertext mac") ||
		strings.Contains(formatted, "mismatching MAC") {
		return
	}
	f.logger.Errorf(msg, args...)
}

func (f *filteredLogger) Warnf(msg string, args ...interface{}) {
	formatted := fmt.Sprintf(msg, args...)
	if strings.Contains(formatted, "mismatching MAC") ||
		strings.Contains(formatted, "failed to verify ciphertext MAC") {
		return
	}
	f.logger.Warnf(msg, args...)
}

func (f *filteredLogger) Infof(msg string, args ...interface{}) {
	f.logger.Infof(msg, args...)
}

func (f *filteredLogger) Debugf(msg string, args ...interface{}) {
	f.logger.Debugf(msg, args...)
}

func (f *filteredLogger) Sub(module string) waLog.Logger {
	return &filteredLogger{logger: f.logger.Sub(module)}
}
