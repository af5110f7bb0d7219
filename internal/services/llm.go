package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	openai "github.com/sashabaranov/go-openai"
)

var (
	// ErrLLMUnavailable is returned when the OpenAI integration is not configured.
	ErrLLMUnavailable = errors.New("openai integration is not configured")

	// ErrGenerationFailed means no completion tier produced usable text.
	ErrGenerationFailed = errors.New("generation failed: no completion tier produced usable text")
)

// CompletionProvider returns the raw completion text for a prompt.
type CompletionProvider interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// CompletionClient sends one completion request through an ordered ladder of
// API shapes. Different API generations expose structured output differently:
// the ladder tries a JSON response-format chat completion, then a plain chat
// completion relying on the prompt's strictness, then the legacy text
// completion endpoint. Incompatibility-class errors advance the ladder;
// transient failures retry the same tier with exponential backoff.
type CompletionClient struct {
	client *openai.Client
	model  string

	attemptTimeout time.Duration
	maxAttempts    int
	backoffInitial time.Duration
	backoffMax     time.Duration

	// overridden in tests
	tiers []completionTier
}

func NewCompletionClient(apiKey, endpoint, model string) *CompletionClient {
	c := &CompletionClient{
		model:          model,
		attemptTimeout: 120 * time.Second,
		maxAttempts:    3,
		backoffInitial: 2 * time.Second,
		backoffMax:     10 * time.Second,
	}
	if apiKey == "" {
		return c
	}
	cfg := openai.DefaultConfig(apiKey)
	if endpoint != "" {
		cfg.BaseURL = endpoint
	}
	c.client = openai.NewClientWithConfig(cfg)
	return c
}

type completionTier struct {
	name   string
	invoke func(ctx context.Context, prompt string) (string, error)
}

type attemptClass int

const (
	classTransient attemptClass = iota
	classIncompatible
)

// classify sorts a tier failure into retry-on-this-tier (transient) or
// advance-the-ladder (incompatible). Rate limits, server errors, and
// timeouts are transient; everything the API rejects outright is treated as
// an incompatibility of the requested shape.
func classify(err error) attemptClass {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500 {
			return classTransient
		}
		return classIncompatible
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return classTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return classTransient
	}
	return classTransient
}

func (c *CompletionClient) Generate(ctx context.Context, prompt string) (string, error) {
	if c.client == nil && c.tiers == nil {
		return "", ErrLLMUnavailable
	}

	tiers := c.tiers
	if tiers == nil {
		tiers = []completionTier{
			{name: "chat+json_object", invoke: c.chatJSONFormat},
			{name: "chat", invoke: c.chatPlain},
			{name: "completions", invoke: c.legacyCompletion},
		}
	}

	var lastErr error
	for _, tier := range tiers {
		wait := backoff.NewExponentialBackOff()
		wait.InitialInterval = c.backoffInitial
		wait.MaxInterval = c.backoffMax
		wait.MaxElapsedTime = 0

		for attempt := 1; attempt <= c.maxAttempts; attempt++ {
			text, err := c.attempt(ctx, tier, prompt)
			if err == nil {
				if strings.TrimSpace(text) != "" {
					return text, nil
				}
				// Empty text counts as an unusable shape, not a retry.
				lastErr = fmt.Errorf("tier %s returned no usable text", tier.name)
				log.Printf("completion tier %s: empty response, trying next tier", tier.name)
				break
			}

			lastErr = err
			if classify(err) == classIncompatible {
				log.Printf("completion tier %s incompatible: %v", tier.name, err)
				break
			}

			log.Printf("completion tier %s attempt %d/%d failed: %v", tier.name, attempt, c.maxAttempts, err)
			if attempt < c.maxAttempts {
				if err := sleepCtx(ctx, wait.NextBackOff()); err != nil {
					return "", err
				}
			}
		}
	}

	if lastErr != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, lastErr)
	}
	return "", ErrGenerationFailed
}

func (c *CompletionClient) attempt(ctx context.Context, tier completionTier, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
	defer cancel()
	return tier.invoke(ctx, prompt)
}

func (c *CompletionClient) chatJSONFormat(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", err
	}
	return firstChoice(resp)
}

// chatPlain drops the response-format hint for models that reject it and
// leans on a system message instead.
func (c *CompletionClient) chatPlain(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: "Respond with a single JSON object and nothing else."},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0,
	})
	if err != nil {
		return "", err
	}
	return firstChoice(resp)
}

func (c *CompletionClient) legacyCompletion(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateCompletion(ctx, openai.CompletionRequest{
		Model:       c.model,
		Prompt:      prompt,
		Temperature: 0,
		MaxTokens:   4096,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("completion returned no choices")
	}
	return resp.Choices[0].Text, nil
}

func firstChoice(resp openai.ChatCompletionResponse) (string, error) {
	if len(resp.Choices) == 0 {
		return "", errors.New("completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
