// Package voice turns spoken Vietnamese phrases into device commands.
//
// Transcription is delegated to an injected Transcriber; the parser
// itself is pure text matching and has no external dependencies.
package voice

import (
	"context"
	"errors"
	"strings"
)

// ErrNoCommand is returned when the text contains no recognizable
// device command.
var ErrNoCommand = errors.New("voice: no recognizable command")

// Transcriber converts recorded audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// Device targets a command can address.
const (
	DeviceFan = "fan"
	DeviceLED = "led"
)

// Command is a parsed device instruction. For fans the action is one of
// the registry verbs (on, off, increase, decrease); for LEDs it is the
// feed status value ("1" or "0").
type Command struct {
	Device string `json:"device"`
	Action string `json:"action"`
}

// containsAny reports whether the text contains any of the given words.
func containsAny(text string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

// ParseCommand extracts a device command from a transcript. Fan phrases
// take precedence when a sentence mentions both device words.
func ParseCommand(text string) (Command, error) {
	text = strings.ToLower(text)

	mentionsFan := containsAny(text, "quạt", "quat")
	mentionsLED := containsAny(text, "đèn", "den")

	turnOff := containsAny(text, "tắt", "tat")
	turnOn := containsAny(text, "bật", "bat", "mở")
	increase := containsAny(text, "tăng", "tang")
	decrease := containsAny(text, "giảm", "giam")

	switch {
	case mentionsFan && turnOff:
		return Command{Device: DeviceFan, Action: "off"}, nil
	case mentionsFan && increase:
		return Command{Device: DeviceFan, Action: "increase"}, nil
	case mentionsFan && decrease:
		return Command{Device: DeviceFan, Action: "decrease"}, nil
	case mentionsFan && turnOn:
		return Command{Device: DeviceFan, Action: "on"}, nil
	case mentionsLED && turnOff:
		return Command{Device: DeviceLED, Action: "0"}, nil
	case mentionsLED && turnOn:
		return Command{Device: DeviceLED, Action: "1"}, nil
	}

	return Command{}, ErrNoCommand
}
