package models

import "unicode/utf16"

// Palette is the fixed set of display colours handed out to usernames.
var Palette = []string{
	"#FF6B6B", "#4ECDC4", "#45B7D1", "#96CEB4",
	"#FFEEAD", "#D4A5A5", "#9B59B6", "#3498DB",
}

// ColorFor hashes the username over Palette. The same name always maps to the
// same colour, on every participant.
func ColorFor(username string) string {
	var hash int32
	for _, c := range utf16.Encode([]rune(username)) {
		hash = int32(c) + ((hash << 5) - hash)
	}
	h := int64(hash)
	if h < 0 {
		h = -h
	}
	return Palette[h%int64(len(Palette))]
}
