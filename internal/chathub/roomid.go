package chathub

import (
	"strings"

	"roomchat/backend/internal/config"

	nanoid "github.com/jaevor/go-nanoid"
)

var (
	newRoomID    = mustGenerator(nanoid.CustomASCII("0123456789abcdef", config.GeneratedRoomIDLength))
	newMessageID = mustGenerator(nanoid.Standard(21))
)

func mustGenerator(gen func() string, err error) func() string {
	if err != nil {
		panic(err)
	}
	return gen
}

// SanitizeRoomID trims raw and replaces every rune outside [A-Za-z0-9_-]
// with '-'. An empty result is replaced by a freshly generated id.
func SanitizeRoomID(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return newRoomID()
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		default:
			return '-'
		}
	}, raw)
}
