// Package prompts holds the agent's system prompt. The default prompt
// is embedded in the binary; deployments can override it with a file
// via agent.prompt_file in the config.
package prompts

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
)

//go:embed system.md
var defaultSystem string

// System returns the system prompt. If path is non-empty the file at
// that path is used, otherwise the embedded default.
func System(path string) (string, error) {
	if path == "" {
		return strings.TrimSpace(defaultSystem), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read prompt file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
