package observers

import (
	"context"
	"time"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/rs/zerolog"

	"github.com/chative/botcore/internal/metrics"
)

type stageStartKey struct{}

// newStageHandler times every lambda node. The start time travels in the
// context returned from OnStart.
func newStageHandler(log zerolog.Logger, m *metrics.Metrics) einocb.Handler {
	return einocb.NewHandlerBuilder().
		OnStartFn(func(ctx context.Context, info *einocb.RunInfo, _ einocb.CallbackInput) context.Context {
			return context.WithValue(ctx, stageStartKey{}, time.Now())
		}).
		OnEndFn(func(ctx context.Context, info *einocb.RunInfo, _ einocb.CallbackOutput) context.Context {
			d := stageElapsed(ctx)
			m.RecordStage(stageName(info), d)
			log.Debug().Str("stage", stageName(info)).Dur("elapsed", d).Msg("stage done")
			return ctx
		}).
		OnErrorFn(func(ctx context.Context, info *einocb.RunInfo, err error) context.Context {
			d := stageElapsed(ctx)
			m.RecordStage(stageName(info), d)
			log.Error().Err(err).Str("stage", stageName(info)).Dur("elapsed", d).Msg("stage failed")
			return ctx
		}).
		Build()
}

func stageElapsed(ctx context.Context) time.Duration {
	start, ok := ctx.Value(stageStartKey{}).(time.Time)
	if !ok {
		return 0
	}
	return time.Since(start)
}

func stageName(info *einocb.RunInfo) string {
	if info == nil || info.Name == "" {
		return "unknown"
	}
	return info.Name
}
