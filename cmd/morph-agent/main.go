// ABOUTME: Reference agent worker spawned or triggered per dispatched job
// ABOUTME: Reads the job payload on stdin, calls the model, appends the response

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/caarlos0/env/v11"

	"github.com/morphlabs/morph-gateway/internal/client"
	"github.com/morphlabs/morph-gateway/internal/dispatch"
	"github.com/morphlabs/morph-gateway/internal/store"
)

const defaultSystemPrompt = "You are a patient, encouraging tutor. Keep answers " +
	"concrete and build on what the student has already said in this conversation."

// workerConfig is read from the environment; the job itself arrives on stdin.
type workerConfig struct {
	GatewayURL   string        `env:"MORPH_GATEWAY_URL" envDefault:"http://localhost:8080"`
	GatewayToken string        `env:"MORPH_API_TOKEN,required"`
	AnthropicKey string        `env:"ANTHROPIC_API_KEY,required"`
	Model        string        `env:"MORPH_MODEL" envDefault:"claude-sonnet-4-5-20250514"`
	MaxTokens    int64         `env:"MORPH_MAX_TOKENS" envDefault:"4096"`
	Timeout      time.Duration `env:"MORPH_TIMEOUT" envDefault:"4m"`
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil)).With("component", "morph-agent")

	if err := run(logger); err != nil {
		logger.Error("worker failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := env.ParseAs[workerConfig]()
	if err != nil {
		return fmt.Errorf("reading environment: %w", err)
	}

	var payload dispatch.Payload
	if err := json.NewDecoder(os.Stdin).Decode(&payload); err != nil {
		return fmt.Errorf("decoding payload: %w", err)
	}
	if payload.ChatID == "" {
		return fmt.Errorf("payload has no chatId")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	logger = logger.With("chat_id", payload.ChatID, "module", payload.Module)
	logger.Info("job received", "history_len", len(payload.History))

	api := client.New(cfg.GatewayURL, cfg.GatewayToken)

	systemPrompt, err := resolveSystemPrompt(ctx, api, payload.Module)
	if err != nil {
		// A missing profile should not strand the conversation.
		logger.Warn("module lookup failed, using default prompt", "error", err)
		systemPrompt = defaultSystemPrompt
	}

	content, meta, err := complete(ctx, cfg, systemPrompt, &payload)
	if err != nil {
		return fmt.Errorf("model call: %w", err)
	}

	event, err := api.AppendEvent(ctx, payload.ChatID, store.EventTypeModelResponse, content, meta)
	if err != nil {
		return fmt.Errorf("appending response: %w", err)
	}

	logger.Info("response appended", "seq", event.Seq)
	return nil
}

// resolveSystemPrompt looks up the module profile's prompt, falling back to
// the default when the chat has no module.
func resolveSystemPrompt(ctx context.Context, api *client.Client, moduleName string) (string, error) {
	if moduleName == "" {
		return defaultSystemPrompt, nil
	}

	mods, err := api.ListModules(ctx)
	if err != nil {
		return "", err
	}
	for _, mod := range mods {
		if mod.Name == moduleName && mod.Prompt != "" {
			return mod.Prompt, nil
		}
	}
	return "", fmt.Errorf("no profile named %q", moduleName)
}

// complete runs one model turn over the payload history and returns the
// response text plus metadata for the appended event.
func complete(ctx context.Context, cfg workerConfig, systemPrompt string, payload *dispatch.Payload) (string, map[string]any, error) {
	anthropicClient := anthropic.NewClient(option.WithAPIKey(cfg.AnthropicKey))

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(cfg.Model),
		MaxTokens: cfg.MaxTokens,
		Messages:  buildMessages(payload),
		System: []anthropic.TextBlockParam{
			{Type: "text", Text: systemPrompt},
		},
	}

	if temp, ok := payload.Settings["temperature"].(float64); ok {
		params.Temperature = anthropic.Float(temp)
	}

	start := time.Now()
	resp, err := anthropicClient.Messages.New(ctx, params)
	if err != nil {
		return "", nil, err
	}

	var content string
	for _, block := range resp.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}

	meta := map[string]any{
		"model":         cfg.Model,
		"input_tokens":  resp.Usage.InputTokens,
		"output_tokens": resp.Usage.OutputTokens,
		"stop_reason":   string(resp.StopReason),
		"duration_ms":   time.Since(start).Milliseconds(),
	}
	return content, meta, nil
}

// buildMessages converts the payload history into alternating chat turns.
// The triggering message is already the last history entry, so the Message
// field is only used when the history is somehow empty.
func buildMessages(payload *dispatch.Payload) []anthropic.MessageParam {
	messages := make([]anthropic.MessageParam, 0, len(payload.History))
	for _, entry := range payload.History {
		switch entry.EventType {
		case store.EventTypeUserInput:
			messages = append(messages, anthropic.MessageParam{
				Role:    anthropic.MessageParamRoleUser,
				Content: []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(entry.Content)},
			})
		case store.EventTypeModelResponse:
			messages = append(messages, anthropic.MessageParam{
				Role:    anthropic.MessageParamRoleAssistant,
				Content: []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(entry.Content)},
			})
		}
	}

	if len(messages) == 0 && payload.Message != "" {
		messages = append(messages, anthropic.MessageParam{
			Role:    anthropic.MessageParamRoleUser,
			Content: []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(payload.Message)},
		})
	}
	return messages
}
