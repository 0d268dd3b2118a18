// Package cli implements the botcore commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/cobra"

	"github.com/chative/botcore/internal/agent/conversations"
	"github.com/chative/botcore/internal/agent/factory"
	"github.com/chative/botcore/internal/agent/learning"
	"github.com/chative/botcore/internal/agent/llm"
	"github.com/chative/botcore/internal/agent/model"
	"github.com/chative/botcore/internal/agent/repo"
	"github.com/chative/botcore/internal/core"
	"github.com/chative/botcore/internal/metrics"
	logx "github.com/chative/botcore/pkg/logger"
	pkgredis "github.com/chative/botcore/pkg/redis"
)

// AppConfig is bound from the environment (and .env for local runs).
type AppConfig struct {
	Environment core.Environment `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string           `envconfig:"LOG_LEVEL"`

	Redis   pkgredis.Config
	LLM     model.LLMConfig
	Context model.ContextConfig

	MemoryMaxPerUser int `envconfig:"MEMORY_MAX_PER_USER" default:"200"`
	UnknownSamples   int `envconfig:"LEARNING_UNKNOWN_SAMPLES" default:"100"`
}

var (
	metricsAddr string
	templateArg string
	botIDArg    string
	configPath  string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:           "botcore",
	Short:         "Multi-tenant conversational agent core",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	RootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
}

// Execute runs the command tree.
func Execute(ctx context.Context) error {
	return RootCmd.ExecuteContext(ctx)
}

func loadConfig() (AppConfig, error) {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, fmt.Errorf("process environment config: %w", err)
	}
	logx.Init(logx.LoggerOpts{Environment: cfg.Environment, Level: cfg.LogLevel})
	return cfg, nil
}

// runtime holds the services every bot built by a command shares.
type runtime struct {
	cfg     AppConfig
	metrics *metrics.Metrics
	learner *learning.InMemoryLearner
	factory *factory.Factory
	closers []func()
}

func newRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log := logx.With("cli")

	rt := &runtime{cfg: cfg, metrics: metrics.New()}
	rt.learner = learning.NewInMemoryLearner(cfg.UnknownSamples, rt.metrics)
	deps := factory.Deps{Metrics: rt.metrics, Learner: rt.learner}

	if cfg.Redis.Enabled() {
		rdb, err := cfg.Redis.New(ctx)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, func() { _ = rdb.Close() })
		contexts := repo.NewRedisContextRepository(rdb, cfg.Redis.KeyPrefix, cfg.Context.TTL)
		deps.Contexts = conversations.NewManager(cfg.Context, conversations.WithRepository(contexts))
		deps.Transcript = contexts
		deps.Memory = repo.NewRedisMemoryStore(rdb, cfg.Redis.KeyPrefix, cfg.MemoryMaxPerUser)
		log.Info().Str("prefix", cfg.Redis.KeyPrefix).Msg("using redis for contexts and memory")
	} else {
		deps.Contexts = conversations.NewManager(cfg.Context)
		log.Info().Msg("redis not configured; contexts and memory stay in process")
	}

	sweepCtx, stopSweep := context.WithCancel(ctx)
	go deps.Contexts.Run(sweepCtx)
	rt.closers = append(rt.closers, stopSweep)

	if cfg.LLM.Enabled() {
		models, err := llm.NewChatModels(ctx, cfg.LLM)
		if err != nil {
			rt.close()
			return nil, err
		}
		deps.ChatModels = models
		log.Info().Str("nlu_model", models.NLUModelName).Str("response_model", models.ResponseModelName).Msg("gemini enabled")
	}

	if metricsAddr != "" {
		rt.serveMetrics(metricsAddr)
	}

	rt.factory = factory.New(deps)
	return rt, nil
}

// overrides layers --bot-id, --config and LLM switches for a bot.
func (rt *runtime) overrides() (map[string]any, error) {
	over := map[string]any{}
	if configPath != "" {
		loaded, err := factory.LoadOverrides(configPath)
		if err != nil {
			return nil, err
		}
		over = loaded
	}
	if botIDArg != "" {
		over["botId"] = botIDArg
	}
	if _, ok := over["botId"]; !ok {
		over["botId"] = "cli-" + templateArg
	}
	if rt.cfg.LLM.Enabled() {
		over = factory.DeepMerge(map[string]any{
			"nlu":      map[string]any{"useLLM": true},
			"response": map[string]any{"rewrite": rt.cfg.LLM.Rewrite},
		}, over)
	}
	return over, nil
}

func (rt *runtime) createBot(ctx context.Context) (*factory.Chatbot, error) {
	over, err := rt.overrides()
	if err != nil {
		return nil, err
	}
	if templateArg == "" {
		return rt.factory.CreateChatbot(ctx, over)
	}
	return rt.factory.CreateFromTemplate(ctx, templateArg, over)
}

func (rt *runtime) serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", rt.metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.Error().Err(err).Str("addr", addr).Msg("metrics server stopped")
		}
	}()
	logx.Info().Str("addr", addr).Msg("serving metrics")

	rt.closers = append(rt.closers, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
}

func (rt *runtime) close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
