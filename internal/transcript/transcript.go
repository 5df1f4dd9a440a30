// Package transcript turns the external chatbot's logged trace blob into
// discrete conversation turns. The blob is one string of lines prefixed
// "user:-" or "bot:-"; there are no per-line timestamps, so input order is
// the only ordering signal.
package transcript

import (
	"iter"
	"strings"
)

type Role string

const (
	RoleUser Role = "user"
	RoleAI   Role = "ai"
)

type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

const (
	userMarker = "user:-"
	botMarker  = "bot:-"
)

// Turns yields the turns of a raw trace in input order. The sequence is
// finite and restartable: ranging over it again re-parses from the start.
// Lines matching neither marker are dropped silently — preserved from the
// logging side's behavior, pending product clarification on whether those
// lines are metadata or lost content.
func Turns(raw string) iter.Seq[Turn] {
	return func(yield func(Turn) bool) {
		cleaned := strings.TrimSpace(raw)
		if cleaned == "" {
			return
		}
		if strings.HasPrefix(cleaned, `"`) && strings.HasSuffix(cleaned, `"`) && len(cleaned) >= 2 {
			cleaned = cleaned[1 : len(cleaned)-1]
		}
		cleaned = strings.ReplaceAll(cleaned, `\n`, "\n")

		for _, line := range strings.Split(cleaned, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			var turn Turn
			switch {
			case strings.HasPrefix(line, userMarker):
				turn = Turn{Role: RoleUser, Content: strings.TrimSpace(strings.TrimPrefix(line, userMarker))}
			case strings.HasPrefix(line, botMarker):
				turn = Turn{Role: RoleAI, Content: strings.TrimSpace(strings.TrimPrefix(line, botMarker))}
			default:
				continue
			}
			if !yield(turn) {
				return
			}
		}
	}
}

// Parse materializes Turns into a slice.
func Parse(raw string) []Turn {
	var turns []Turn
	for t := range Turns(raw) {
		turns = append(turns, t)
	}
	return turns
}
