package config

import (
	"strings"

	"github.com/google/go-cmp/cmp"
)

// DiffSerialized returns a diff between two serialized configuration payloads,
// used to show what changed when a reload is rejected.
func DiffSerialized(previous, current []byte) string {
	prevLines := splitLines(previous)
	currLines := splitLines(current)
	return cmp.Diff(prevLines, currLines)
}

func splitLines(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return []string{""}
	}
	return strings.Split(text, "\n")
}
