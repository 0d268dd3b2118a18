package actions

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cloudwego/eino/components/tool"
)

type ToolOptions struct {
	Category       string
	Permission     Permission
	RequiredParams []string
}

// FromTool exposes an eino tool as an action. Params are passed as the
// tool's JSON arguments; a JSON response is decoded, anything else is
// returned as text.
func FromTool(ctx context.Context, t tool.InvokableTool, opts ToolOptions) (Definition, error) {
	info, err := t.Info(ctx)
	if err != nil {
		return Definition{}, fmt.Errorf("tool info: %w", err)
	}
	return Definition{
		Name:           info.Name,
		Description:    info.Desc,
		RequiredParams: opts.RequiredParams,
		Category:       opts.Category,
		Permission:     opts.Permission,
		ReturnsData:    true,
		Handler: func(ctx context.Context, params map[string]any, _ ExecutionContext) (any, error) {
			if params == nil {
				params = map[string]any{}
			}
			args, err := json.Marshal(params)
			if err != nil {
				return nil, fmt.Errorf("marshal %s arguments: %w", info.Name, err)
			}
			out, err := t.InvokableRun(ctx, string(args))
			if err != nil {
				return nil, err
			}
			var decoded any
			if err := json.Unmarshal([]byte(out), &decoded); err != nil {
				return out, nil
			}
			return decoded, nil
		},
	}, nil
}
