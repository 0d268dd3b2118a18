package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/chative/botcore/internal/agent/factory"
	"github.com/chative/botcore/internal/agent/model"
)

// demoScripts are canned conversations per template.
var demoScripts = map[string][]string{
	factory.TemplateSales: {
		"Hello!",
		"pricing please",
		"Can I book a demo for tomorrow? my email is sam@example.com",
		"thanks, that's great",
		"bye",
	},
	factory.TemplateSupport: {
		"hi, my order ORD-12345 never arrived and I'm upset",
		"what's the order status of ORD-12345",
		"I want to talk to a human agent",
		"thank you",
	},
	factory.TemplateAssistant: {
		"good morning",
		"remind me to call the bank",
		"what time is it",
		"goodbye",
	},
}

func init() {
	demo := &cobra.Command{
		Use:   "demo [template]",
		Short: "Run a scripted conversation against a template",
		Args:  cobra.MaximumNArgs(1),
		Run:   runDemo,
	}

	templates := &cobra.Command{
		Use:   "templates [name]",
		Short: "List templates, or print the resolved config of one",
		Args:  cobra.MaximumNArgs(1),
		Run:   runTemplates,
	}

	RootCmd.AddCommand(demo, templates)
}

func runDemo(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()
	names := factory.Templates()
	if len(args) == 1 {
		names = args
	}

	rt, err := newRuntime(ctx)
	if err != nil {
		exitErr("start runtime", err)
	}
	defer rt.close()

	out := cmd.OutOrStdout()
	for _, name := range names {
		script, ok := demoScripts[name]
		if !ok {
			exitErr("demo", fmt.Errorf("%w: %q", factory.ErrUnknownTemplate, name))
		}
		bot, err := rt.factory.CreateFromTemplate(ctx, name, map[string]any{
			"botId":    "demo-" + name,
			"response": map[string]any{"seed": 42},
		})
		if err != nil {
			exitErr("create bot", err)
		}

		fmt.Fprintf(out, "=== %s (%s) ===\n", bot.Config.Name, name)
		for _, line := range script {
			fmt.Fprintf(out, "you> %s\n", line)
			resp := bot.ProcessMessage(ctx, model.InboundMessage{Text: line, UserID: "demo-user", SessionID: "demo"})
			printResponse(out, bot.Config.Name, resp)
		}

		drainCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := bot.Drain(drainCtx); err != nil {
			fmt.Fprintf(out, "drain: %v\n", err)
		}
		cancel()
		printJSON(out, rt.learner.Stats(bot.BotID()))
		if err := bot.Close(); err != nil {
			fmt.Fprintf(out, "close: %v\n", err)
		}
		fmt.Fprintln(out)
	}
}

func runTemplates(cmd *cobra.Command, args []string) {
	out := cmd.OutOrStdout()
	if len(args) == 0 {
		for _, name := range factory.Templates() {
			fmt.Fprintln(out, name)
		}
		return
	}

	cfg, err := factory.ResolveTemplate(args[0], map[string]any{"botId": "preview"})
	if err != nil {
		exitErr("resolve template", err)
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		exitErr("encode template", err)
	}
	fmt.Fprint(out, string(b))
}
