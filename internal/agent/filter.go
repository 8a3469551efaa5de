package agent

import "strings"

// defaultDenyPrefixes covers reasoning-style lines some models leak
// into their final text despite instructions.
var defaultDenyPrefixes = []string{
	"Looking at", "The issue", "The problem", "Solution", "Here are",
	"This appears to be", "It seems", "The bot", "Any way we can",
	"Code:", "Let's", "So respond:", "Use the exact phrase:",
	"To be safe", "Best to", "Perhaps we", "So current",
	"But system expects", "But now", "However earlier",
}

// defaultDenySubstrings drops lines that mention internal artifacts.
var defaultDenySubstrings = []string{"reasoning", "artifact"}

// ReplyFilter strips leaked internal reasoning lines from a final
// reply before it reaches the user.
type ReplyFilter struct {
	prefixes   []string
	substrings []string
}

// NewReplyFilter builds a filter. Extra prefixes extend the default
// deny list.
func NewReplyFilter(extraPrefixes []string) *ReplyFilter {
	prefixes := make([]string, 0, len(defaultDenyPrefixes)+len(extraPrefixes))
	prefixes = append(prefixes, defaultDenyPrefixes...)
	prefixes = append(prefixes, extraPrefixes...)
	return &ReplyFilter{
		prefixes:   prefixes,
		substrings: defaultDenySubstrings,
	}
}

// Clean removes denied lines from content. An empty result is
// returned as "" so the caller can apply its own fallback.
func (f *ReplyFilter) Clean(content string) string {
	if content == "" {
		return ""
	}

	var kept []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if len(kept) == 0 && line == "" {
			continue
		}
		if f.denied(line) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

func (f *ReplyFilter) denied(line string) bool {
	for _, prefix := range f.prefixes {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	lower := strings.ToLower(line)
	for _, sub := range f.substrings {
		if strings.Contains(lower, sub) {
			return true
		}
	}
	return false
}
