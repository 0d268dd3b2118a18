package nlu

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

//go:embed template/nlu_prompt.txt
var systemPromptTemplate string

// RenderSystemPrompt fills the NLU system prompt through the eino prompt
// component so prompt callbacks fire.
func RenderSystemPrompt(ctx context.Context, intents []IntentDefinition, entityTypes []string) (string, error) {
	names := make([]string, 0, len(intents))
	for _, it := range intents {
		names = append(names, it.Name)
	}

	// Replace known tokens only; the template contains literal JSON braces.
	content := strings.NewReplacer(
		"{TD}", tupDelim,
		"{RD}", recDelim,
		"{CD}", endDelim,
		"{intents}", strings.Join(names, ", "),
		"{entities}", strings.Join(entityTypes, ", "),
	).Replace(systemPromptTemplate)

	tpl := prompt.FromMessages(
		schema.FString,
		schema.MessagesPlaceholder("system_messages", false),
	)
	msgs, err := tpl.Format(ctx, map[string]any{
		"system_messages": []*schema.Message{schema.SystemMessage(content)},
	})
	if err != nil {
		return "", fmt.Errorf("nlu prompt: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("nlu prompt: empty result")
	}
	return msgs[0].Content, nil
}
