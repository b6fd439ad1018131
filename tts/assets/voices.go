package assets

import (
	"sort"

	"github.com/sahilm/fuzzy"
)

// DefaultVoice is used when no voice key is given.
const DefaultVoice = "M1"

// VoiceInfo describes one entry in the closed voice catalog.
type VoiceInfo struct {
	Key       string `json:"key"`
	Gender    string `json:"gender"`
	Character string `json:"character"`
}

// The catalog is fixed by the model release: five female and five male
// styles, each backed by one binary in the model repository.
var voiceCatalog = map[string]VoiceInfo{
	"F1": {Key: "F1", Gender: "female", Character: "neutral"},
	"F2": {Key: "F2", Gender: "female", Character: "expressive"},
	"F3": {Key: "F3", Gender: "female", Character: "soft"},
	"F4": {Key: "F4", Gender: "female", Character: "bright"},
	"F5": {Key: "F5", Gender: "female", Character: "warm"},
	"M1": {Key: "M1", Gender: "male", Character: "neutral"},
	"M2": {Key: "M2", Gender: "male", Character: "expressive"},
	"M3": {Key: "M3", Gender: "male", Character: "deep"},
	"M4": {Key: "M4", Gender: "male", Character: "soft"},
	"M5": {Key: "M5", Gender: "male", Character: "energetic"},
}

// VoiceKeys returns every valid voice key in sorted order.
func VoiceKeys() []string {
	keys := make([]string, 0, len(voiceCatalog))
	for key := range voiceCatalog {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Voices returns the full catalog sorted by key.
func Voices() []VoiceInfo {
	voices := make([]VoiceInfo, 0, len(voiceCatalog))
	for _, key := range VoiceKeys() {
		voices = append(voices, voiceCatalog[key])
	}
	return voices
}

// IsValidVoice reports whether key names a catalog voice.
func IsValidVoice(key string) bool {
	_, ok := voiceCatalog[key]
	return ok
}

// Voice looks up catalog metadata for key.
func Voice(key string) (VoiceInfo, bool) {
	info, ok := voiceCatalog[key]
	return info, ok
}

// SuggestVoice returns the closest catalog key to an invalid input, or ""
// when nothing matches even loosely.
func SuggestVoice(key string) string {
	matches := fuzzy.Find(key, VoiceKeys())
	if len(matches) == 0 {
		return ""
	}
	return matches[0].Str
}
