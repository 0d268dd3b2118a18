// Package llm wires Gemini chat models into the agent and tracks their cost.
package llm

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"github.com/chative/botcore/internal/agent/model"
	logx "github.com/chative/botcore/pkg/logger"
)

const thinkingBudget = 2000

// ChatModel is the part of an eino chat model the agent calls.
type ChatModel interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error)
}

// ChatModels holds the NLU and response models built from one Gemini client.
type ChatModels struct {
	NLU               *gemini.ChatModel
	Response          *gemini.ChatModel
	NLUModelName      string
	ResponseModelName string
}

// NewChatModels creates both models. cfg.APIKey must be set.
func NewChatModels(ctx context.Context, cfg model.LLMConfig) (*ChatModels, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("gemini api key is not set")
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = cfg.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}

	// NLU runs cold; the tuple format leaves no room for creativity.
	var nluTemp float32
	nlu, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       cfg.NLUModel,
		Temperature: &nluTemp,
		MaxTokens:   &cfg.MaxTokens,
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating NLU model")
		return nil, fmt.Errorf("error creating NLU model: %w", err)
	}

	resp, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       cfg.Model,
		Temperature: &cfg.Temperature,
		MaxTokens:   &cfg.MaxTokens,
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: false,
			ThinkingBudget:  genai.Ptr(int32(thinkingBudget)),
		},
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Response model")
		return nil, fmt.Errorf("error creating Response model: %w", err)
	}

	logx.Debug().Str("nlu_model", cfg.NLUModel).Str("response_model", cfg.Model).Msg("Gemini chat models ready")
	return &ChatModels{
		NLU:               nlu,
		Response:          resp,
		NLUModelName:      cfg.NLUModel,
		ResponseModelName: cfg.Model,
	}, nil
}
