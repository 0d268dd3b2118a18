package llm

import (
	"github.com/cloudwego/eino/schema"

	"github.com/chative/botcore/internal/metrics"
)

// Pricing is USD per 1M text tokens.
type Pricing struct {
	InputPerM  float64
	OutputPerM float64
}

var defaultPricing = map[string]Pricing{
	"gemini-2.5-flash":      {InputPerM: 0.30, OutputPerM: 2.50},
	"gemini-2.5-flash-lite": {InputPerM: 0.10, OutputPerM: 0.40},
	"gemini-2.5-pro":        {InputPerM: 1.25, OutputPerM: 10.00},
}

// ResolvePricing returns zero pricing for unknown models.
func ResolvePricing(modelName string) Pricing {
	return defaultPricing[modelName]
}

// Cost is the usage breakdown attached to a completion.
type Cost struct {
	Model            string  `json:"model"`
	Currency         string  `json:"currency"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	InputCost        float64 `json:"input_cost"`
	OutputCost       float64 `json:"output_cost"`
	TotalCost        float64 `json:"total_cost"`
}

// ComputeCost converts token usage to USD.
func ComputeCost(modelName string, usage *schema.TokenUsage) Cost {
	c := Cost{Model: modelName, Currency: "USD"}
	if usage == nil {
		return c
	}
	p := ResolvePricing(modelName)
	c.PromptTokens = usage.PromptTokens
	c.CompletionTokens = usage.CompletionTokens
	c.TotalTokens = usage.TotalTokens
	c.InputCost = p.InputPerM * float64(usage.PromptTokens) / 1_000_000.0
	c.OutputCost = p.OutputPerM * float64(usage.CompletionTokens) / 1_000_000.0
	c.TotalCost = c.InputCost + c.OutputCost
	return c
}

// UsageOf returns the cost of msg, or false when the model reported no usage.
func UsageOf(modelName string, msg *schema.Message) (Cost, bool) {
	if msg == nil || msg.ResponseMeta == nil || msg.ResponseMeta.Usage == nil {
		return Cost{}, false
	}
	return ComputeCost(modelName, msg.ResponseMeta.Usage), true
}

// Record pushes c into m.
func (c Cost) Record(m *metrics.Metrics) {
	m.RecordLLMUsage(c.Model, c.PromptTokens, c.CompletionTokens, c.TotalCost)
}
