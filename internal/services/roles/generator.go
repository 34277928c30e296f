// File: internal/services/roles/generator.go
package roles

import (
	"context"
	"fmt"
	"strings"

	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/domain"
)

// Completer is the single-shot LLM call the generator needs.
type Completer interface {
	GetCompletion(ctx context.Context, model, prompt string) (string, error)
}

// Logger is the logging contract this package needs.
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
}

// Generator phrases clinician, patient and listener utterances with an LLM.
// It implements domain.ReplyGenerator.
type Generator struct {
	completer Completer
	prompts   *Prompts
	config    *Config
	logger    Logger
}

var _ domain.ReplyGenerator = (*Generator)(nil)

func NewGenerator(completer Completer, prompts *Prompts, config *Config, logger Logger) (*Generator, error) {
	if completer == nil {
		return nil, fmt.Errorf("completer is required")
	}
	if prompts == nil {
		prompts = DefaultPrompts()
	}
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid roles configuration: %w", err)
	}
	return &Generator{completer: completer, prompts: prompts, config: config, logger: logger}, nil
}

func (g *Generator) GenerateReply(ctx context.Context, req domain.ReplyRequest) (string, error) {
	if req.Task == "" {
		req.Task = domain.TaskReply
	}
	prompt, err := g.BuildPrompt(req)
	if err != nil {
		return "", err
	}

	g.logger.Debug("generating utterance", "role", req.Role, "task", req.Task, "prompt_len", len(prompt))
	out, err := g.completer.GetCompletion(ctx, g.config.Model, prompt)
	if err != nil {
		g.logger.Error("generation failed", "role", req.Role, "task", req.Task, "error", err)
		return "", newGenerationError(req, "completion failed", err)
	}

	text := stripRoleLabel(strings.TrimSpace(out), req.Role)
	if text == "" {
		return "", newGenerationError(req, "empty response", nil)
	}
	return text, nil
}

// BuildPrompt assembles the persona, the clipped transcript, any guidance and
// the task and language instructions.
func (g *Generator) BuildPrompt(req domain.ReplyRequest) (string, error) {
	persona, ok := g.prompts.Roles[req.Role]
	if !ok || strings.TrimSpace(persona) == "" {
		return "", newGenerationError(req, "no persona for role", domain.ErrInvalidArgument)
	}
	task, ok := g.prompts.Tasks[req.Task]
	if !ok {
		return "", newGenerationError(req, "unknown task", domain.ErrInvalidArgument)
	}
	lang := req.Language
	if lang == "" {
		lang = domain.LanguageBilingual
	}

	transcript := clipTail(sanitize(domain.RenderTranscript(req.Transcript)), g.config.MaxTranscriptChars)

	var b strings.Builder
	b.WriteString(strings.TrimSpace(persona))
	b.WriteString("\n\n")
	b.WriteString(formatSection("conversation transcript", transcript))
	if guidance := strings.TrimSpace(req.Guidance); guidance != "" {
		b.WriteString(formatSection("guidance", g.prompts.Guidance+"\n"+guidance))
	}
	b.WriteString(formatSection("session notes", sanitize(req.Notes)))
	b.WriteString(formatSection("clinician question", sanitize(req.Question)))
	b.WriteString(formatSection("instructions", task+"\n"+g.prompts.Languages[lang]))
	return strings.TrimSpace(b.String()), nil
}

// stripRoleLabel removes a leading "Role:" the model sometimes echoes.
func stripRoleLabel(text string, role domain.Role) string {
	prefix := string(role) + ":"
	if len(text) >= len(prefix) && strings.EqualFold(text[:len(prefix)], prefix) {
		return strings.TrimSpace(text[len(prefix):])
	}
	return text
}
