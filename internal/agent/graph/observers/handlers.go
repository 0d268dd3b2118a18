// Package observers attaches logging and stage metrics to agent graph runs.
package observers

import (
	einocb "github.com/cloudwego/eino/callbacks"
	callbackHelper "github.com/cloudwego/eino/utils/callbacks"

	"github.com/chative/botcore/internal/metrics"
	logx "github.com/chative/botcore/pkg/logger"
)

// New aggregates the stage, model and prompt handlers for one bot into a
// single callbacks.Handler.
func New(botID string, m *metrics.Metrics) einocb.Handler {
	log := logx.With("graph").With().Str("bot_id", botID).Logger()
	return callbackHelper.NewHandlerHelper().
		ChatModel(newModelHandler(log)).
		Prompt(newPromptHandler(log)).
		Lambda(newStageHandler(log, m)).
		Handler()
}
