package strategy

import (
	"context"
	"fmt"
	"time"

	"alphabot/internal/domain/models"
	xhttp "alphabot/pkg/http"
	"alphabot/pkg/logger"
	"alphabot/pkg/retry"
)

const (
	llmTemperature = 0.7
	llmMaxTokens   = 1024
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			// Some reasoning models return their text here instead.
			ReasoningContent string `json:"reasoning_content"`
		} `json:"message"`
	} `json:"choices"`
}

// LLM is a remote-inference strategy parameterized by model and backend. All
// backends share the same prompt and the same tolerant response parser; only
// the endpoint and auth differ. A failed call never surfaces as an error:
// Predict degrades to a low-confidence HOLD at the current price.
type LLM struct {
	name    string
	model   string
	backend Backend
	client  *xhttp.Client
	logger  *logger.Logger
	retry   retry.Config
}

// NewLLM creates a remote-inference strategy.
func NewLLM(name, model string, backend Backend, l *logger.Logger) *LLM {
	return &LLM{
		name:    name,
		model:   model,
		backend: backend,
		client:  xhttp.NewClient(xhttp.WithTimeout(60 * time.Second)),
		logger:  l,
		retry: retry.Config{
			MaxAttempts: 3,
			BaseDelay:   2 * time.Second,
			MaxDelay:    10 * time.Second,
		},
	}
}

func (l *LLM) Name() string { return l.name }

func (l *LLM) Predict(ctx context.Context, snapshot *models.MarketSnapshot) (*models.Signal, error) {
	if len(snapshot.PriceHistory) == 0 {
		return nil, fmt.Errorf("%s: empty price history", l.name)
	}

	content, err := l.complete(ctx, buildPrompt(snapshot))
	if err != nil {
		l.logger.Error("inference call failed, falling back to HOLD",
			logger.String("strategy", l.name),
			logger.Error(err))
		return &models.Signal{
			Timestamp:      snapshot.Timestamp,
			Action:         models.ActionHold,
			PredictedPrice: snapshot.CurrentPrice,
			Confidence:     0.1,
			Reasoning:      fmt.Sprintf("Error during prediction: %v", err),
		}, nil
	}

	return parseResponse(content, snapshot), nil
}

func (l *LLM) complete(ctx context.Context, userPrompt string) (string, error) {
	return retry.Do(ctx, l.retry, func(ctx context.Context) (string, error) {
		headers, err := l.backend.Headers(ctx)
		if err != nil {
			return "", err
		}

		var resp chatResponse
		err = l.client.SendAndParse(ctx, &xhttp.RequestOptions{
			Method:  xhttp.MethodPost,
			URL:     l.backend.Endpoint(),
			Headers: headers,
			Body: chatRequest{
				Model: l.model,
				Messages: []chatMessage{
					{Role: "system", Content: systemPrompt},
					{Role: "user", Content: userPrompt},
				},
				Temperature: llmTemperature,
				MaxTokens:   llmMaxTokens,
			},
		}, &resp)
		if err != nil {
			return "", err
		}

		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("%s returned no choices", l.name)
		}
		content := resp.Choices[0].Message.Content
		if content == "" {
			content = resp.Choices[0].Message.ReasoningContent
		}
		if content == "" {
			return "", fmt.Errorf("%s returned empty content", l.name)
		}
		return content, nil
	})
}
