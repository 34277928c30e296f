// File: internal/services/roles/prompts.go
package roles

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/domain"
)

//go:embed prompts.yaml
var defaultPrompts []byte

// Prompts holds the persona of each role and the instruction for each task
// and language.
type Prompts struct {
	Roles     map[domain.Role]string     `yaml:"roles"`
	Tasks     map[domain.Task]string     `yaml:"tasks"`
	Languages map[domain.Language]string `yaml:"languages"`
	Guidance  string                     `yaml:"guidance"`
}

// DefaultPrompts returns the built-in prompt set.
func DefaultPrompts() *Prompts {
	p, err := parsePrompts(defaultPrompts)
	if err != nil {
		panic(fmt.Sprintf("embedded prompts are invalid: %v", err))
	}
	return p
}

// LoadPrompts reads a prompt file. Keys missing from the file fall back to
// the built-in prompts.
func LoadPrompts(path string) (*Prompts, error) {
	base := DefaultPrompts()
	if path == "" {
		return base, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompts: %w", err)
	}
	override, err := parsePrompts(data)
	if err != nil {
		return nil, err
	}
	for k, v := range override.Roles {
		base.Roles[k] = v
	}
	for k, v := range override.Tasks {
		base.Tasks[k] = v
	}
	for k, v := range override.Languages {
		base.Languages[k] = v
	}
	if override.Guidance != "" {
		base.Guidance = override.Guidance
	}
	return base, nil
}

func parsePrompts(data []byte) (*Prompts, error) {
	p := &Prompts{
		Roles:     map[domain.Role]string{},
		Tasks:     map[domain.Task]string{},
		Languages: map[domain.Language]string{},
	}
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("parse prompts: %w", err)
	}
	return p, nil
}

// formatSection renders a titled block of the prompt, or nothing for empty content.
func formatSection(title, content string) string {
	content = strings.TrimSpace(content)
	if content == "" {
		return ""
	}
	return fmt.Sprintf("%s:\n%s\n\n", strings.ToUpper(title), content)
}

func sanitize(input string) string {
	s := strings.ReplaceAll(input, "\x00", "")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	for strings.Contains(s, "\n\n\n") {
		s = strings.ReplaceAll(s, "\n\n\n", "\n\n")
	}
	return s
}

// clipTail keeps the last max bytes of s, starting on a line boundary when
// one is available.
func clipTail(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	s = s[len(s)-max:]
	if i := strings.IndexByte(s, '\n'); i >= 0 && i < len(s)-1 {
		return s[i+1:]
	}
	for len(s) > 0 && !utf8.RuneStart(s[0]) {
		s = s[1:]
	}
	return s
}
