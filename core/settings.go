package core

import (
	"encoding/json"
	"os"
	"sync"
)

// Settings are the runtime feature toggles, persisted across restarts so a
// toggle flipped via chat command survives a reconnect cycle.
type Settings struct {
	AutoOnline bool `json:"auto_online"`
	AutoTyping bool `json:"auto_typing"`
}

var (
	currentSettings = Settings{
		AutoOnline: true,
		AutoTyping: false,
	}
	settingsMutex sync.RWMutex
	settingsFile  = "settings.json"
)

// InitSettings loads persisted toggles from path, keeping defaults for
// anything missing or unparseable.
func InitSettings(path string) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	if path != "" {
		settingsFile = path
	}

	data, err := os.ReadFile(settingsFile)
	if err != nil {
		return
	}
	var loaded map[string]interface{}
	if json.Unmarshal(data, &loaded) != nil {
		return
	}
	if val, ok := loaded["auto_online"].(bool); ok {
		currentSettings.AutoOnline = val
	}
	if val, ok := loaded["auto_typing"].(bool); ok {
		currentSettings.AutoTyping = val
	}
}

func GetSettings() Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return currentSettings
}

// UpdateSettings applies any non-nil toggle and persists the result.
func UpdateSettings(autoOnline, autoTyping *bool) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	if autoOnline != nil {
		currentSettings.AutoOnline = *autoOnline
	}
	if autoTyping != nil {
		currentSettings.AutoTyping = *autoTyping
	}

	saveSettings()
}

func saveSettings() {
	data, err := json.Marshal(currentSettings)
	if err != nil {
		return
	}
	os.WriteFile(settingsFile, data, 0o644)
}
