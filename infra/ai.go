package infra

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/resumelab/cv-optimizer/config"
)

const (
	aiCallTimeout = 60 * time.Second
	aiMaxRetries  = 3
	aiBaseBackoff = 2 * time.Second
)

var ErrAIKeyNotSet = errors.New("OpenAI API key not set")

// AIClient performs the CV analysis and optimization calls. It is a thin
// wrapper over chat completions; prompt quality is not this service's concern.
type AIClient struct {
	client openai.Client
	model  string
}

func InitAIClient(cfg *config.EnvConfig) (*AIClient, error) {
	if cfg.OpenAI.APIKey == "" {
		return nil, ErrAIKeyNotSet
	}

	return &AIClient{
		client: openai.NewClient(option.WithAPIKey(cfg.OpenAI.APIKey)),
		model:  cfg.OpenAI.Model,
	}, nil
}

// Complete sends a single-prompt chat completion. When jsonOutput is set the
// response is constrained to a JSON object. Rate-limit errors are retried with
// exponential backoff; everything else fails immediately.
func (a *AIClient) Complete(ctx context.Context, prompt string, jsonOutput bool) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, aiCallTimeout)
	defer cancel()

	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(a.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	}
	if jsonOutput {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{Type: "json_object"},
		}
	}

	var lastErr error
	for attempt := 0; attempt <= aiMaxRetries; attempt++ {
		if attempt > 0 {
			backoff := aiBaseBackoff * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		completion, err := a.client.Chat.Completions.New(ctx, params)
		if err != nil {
			lastErr = err
			if isRateLimitError(err) {
				continue
			}
			return "", fmt.Errorf("OpenAI API call failed: %w", err)
		}

		if len(completion.Choices) == 0 {
			return "", errors.New("no completion choices returned")
		}
		return completion.Choices[0].Message.Content, nil
	}

	return "", fmt.Errorf("OpenAI API call failed after %d retries: %w", aiMaxRetries, lastErr)
}

func (a *AIClient) AnalyzeCV(ctx context.Context, cvText string) (string, error) {
	prompt := "Analyze the following CV and return a JSON object with keys " +
		"\"skills\", \"experience_years\", \"strengths\", \"weaknesses\" and \"keywords\".\n\nCV:\n" + cvText
	return a.Complete(ctx, prompt, true)
}

func (a *AIClient) OptimizeCV(ctx context.Context, cvText, jobDescription, analysis string) (string, error) {
	prompt := fmt.Sprintf(
		"Rewrite the following CV to better match the job description. "+
			"Use the analysis for guidance. Return a JSON object with keys "+
			"\"optimized_text\", \"score\" (0-100) and \"recommendations\" (array of strings).\n\n"+
			"CV:\n%s\n\nJob description:\n%s\n\nAnalysis:\n%s",
		cvText, jobDescription, analysis)
	return a.Complete(ctx, prompt, true)
}

func (a *AIClient) GenerateCoverLetter(ctx context.Context, analysis, jobTitle, company string) (string, error) {
	prompt := fmt.Sprintf(
		"Write a short cover letter for the position %q at %q based on this candidate analysis:\n%s",
		jobTitle, company, analysis)
	return a.Complete(ctx, prompt, false)
}

func isRateLimitError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests
	}
	return false
}
