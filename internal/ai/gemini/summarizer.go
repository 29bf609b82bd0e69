package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/xdmiq/jobmatch/internal/ai"
	"github.com/xdmiq/jobmatch/internal/logger"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
	Model() string
}

//go:embed prompt.md
var promptTemplate string

const defaultMaxLogLength = 200

// Summarizer turns a generated match into a short narrative via the
// Gemini API. The matching engine treats it as optional: any error here
// only costs the summary, never the match.
type Summarizer struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

// NewSummarizer builds a Summarizer on the given generator.
func NewSummarizer(generator contentGenerator, log *zap.Logger, maxLogLength int) *Summarizer {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Summarizer{
		generator: generator,
		logger:    log,
		maxLogLen: maxLogLength,
	}
}

// Summarize produces a one-paragraph explanation of the match.
func (s *Summarizer) Summarize(ctx context.Context, match *ai.MatchContext) (string, error) {
	if match == nil {
		return "", fmt.Errorf("match context is required")
	}

	matchJSON, err := json.MarshalIndent(match, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal match payload: %w", err)
	}

	prompt := buildPrompt(string(matchJSON))

	s.logger.Debug("gemini summary request",
		zap.String("job_title", match.JobTitle),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", logger.TruncateForLog(prompt, s.maxLogLen)),
	)

	raw, err := s.generator.GenerateContent(ctx, prompt)
	if err != nil {
		return "", err
	}

	s.logger.Debug("gemini summary response",
		zap.String("job_title", match.JobTitle),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", logger.TruncateForLog(raw, s.maxLogLen)),
	)

	summary := cleanResponse(raw)
	if summary == "" {
		return "", fmt.Errorf("gemini returned an empty summary")
	}

	return summary, nil
}

func buildPrompt(matchJSON string) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Match:\n{{MATCH_JSON}}\n\nSummary:"
	}
	return strings.ReplaceAll(template, "{{MATCH_JSON}}", matchJSON)
}

// cleanResponse strips markdown fences a model sometimes wraps around
// plain-text answers.
func cleanResponse(raw string) string {
	cleaned := strings.TrimSpace(raw)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```text")
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSpace(cleaned)
		if idx := strings.LastIndex(cleaned, "```"); idx != -1 {
			cleaned = cleaned[:idx]
		}
	}
	cleaned = strings.Trim(cleaned, "`")
	return strings.TrimSpace(cleaned)
}
