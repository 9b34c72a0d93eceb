package decompose

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/mesh-intelligence/storysync/pkg/types"
)

// maxOutputTokens bounds the model reply.
const maxOutputTokens = 700

// Generator produces a text completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GenAIGenerator calls a Gemini model through the genai SDK.
type GenAIGenerator struct {
	client      *genai.Client
	model       string
	temperature float32
}

// NewGenAIGenerator creates a generator from the decomposition config.
func NewGenAIGenerator(ctx context.Context, cfg types.DecomposeConfig) (*GenAIGenerator, error) {
	if cfg.APIKey == "" {
		return nil, types.ErrMissingAPIKey
	}
	model := cfg.Model
	if model == "" {
		model = types.DefaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create genai client: %w", types.ErrFatalConfig, err)
	}
	return &GenAIGenerator{client: client, model: model, temperature: cfg.Temperature}, nil
}

// Generate implements Generator.
func (g *GenAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(g.temperature),
		MaxOutputTokens: maxOutputTokens,
	})
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	return resp.Text(), nil
}

// Prompt builds the decomposition request for a story.
func Prompt(title, body string, maxTasks int) string {
	story := strings.TrimSpace(fmt.Sprintf("TITLE: %s\n\nBODY:\n%s", title, body))
	return "You are an assistant splitting a GitHub issue (user story) into actionable development tasks. " +
		`Return ONLY a JSON array, no commentary. Each element MUST have "title" and "description". ` +
		fmt.Sprintf("Limit to at most %d tasks. Titles <= 70 chars. Avoid duplicates.\n\n", maxTasks) +
		story
}

// Decomposer implements types.Decomposer on top of a Generator.
type Decomposer struct {
	gen      Generator
	maxTasks int
	logger   *zap.Logger
}

// NewDecomposer creates a Decomposer. maxTasks <= 0 uses the default cap.
func NewDecomposer(gen Generator, maxTasks int, logger *zap.Logger) *Decomposer {
	if maxTasks <= 0 {
		maxTasks = types.DefaultMaxTasks
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Decomposer{gen: gen, maxTasks: maxTasks, logger: logger}
}

// Decompose asks the model for tasks. A failed call is returned wrapped in
// ErrTransient; an answer with nothing usable in it is an empty list.
func (d *Decomposer) Decompose(ctx context.Context, title, body string) ([]types.ChildDescriptor, error) {
	reply, err := d.gen.Generate(ctx, Prompt(title, body, d.maxTasks))
	if err != nil {
		return nil, fmt.Errorf("%w: decompose %q: %w", types.ErrTransient, title, err)
	}
	descs := ParseDescriptors(reply, d.maxTasks)
	if len(descs) == 0 {
		d.logger.Warn("no tasks parsed from model reply",
			zap.String("title", title),
			zap.Int("reply_bytes", len(reply)))
	}
	return descs, nil
}
