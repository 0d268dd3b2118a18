package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/chative/botcore/internal/agent/factory"
	"github.com/chative/botcore/internal/agent/graph"
	"github.com/chative/botcore/internal/agent/model"
)

var userIDArg string

func init() {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to a bot on the terminal",
		Long:  "Starts an interactive session. /reset clears the conversation, /stats prints learning counters, /quit exits.",
		Run:   runChat,
	}
	cmd.Flags().StringVarP(&templateArg, "template", "t", factory.TemplateAssistant, "Template to build the bot from (empty for defaults only)")
	cmd.Flags().StringVar(&botIDArg, "bot-id", "", "Bot id (default: cli-<template>)")
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML file with config overrides")
	cmd.Flags().StringVarP(&userIDArg, "user", "u", "cli-user", "User id sent with every message")

	RootCmd.AddCommand(cmd)
}

func runChat(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()
	rt, err := newRuntime(ctx)
	if err != nil {
		exitErr("start runtime", err)
	}
	defer rt.close()

	bot, err := rt.createBot(ctx)
	if err != nil {
		exitErr("create bot", err)
	}
	defer bot.Close()

	out := cmd.OutOrStdout()
	session := uuid.NewString()
	fmt.Fprintf(out, "%s (%s) ready. Type /quit to exit.\n", bot.Config.Name, bot.BotID())

	in := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, "you> ")
		if !in.Scan() {
			fmt.Fprintln(out)
			return
		}
		line := strings.TrimSpace(in.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return
		case "/reset":
			id := graph.ConversationID(bot.BotID(), model.InboundMessage{SessionID: session})
			if err := bot.Contexts().Clear(ctx, id); err != nil {
				fmt.Fprintf(out, "reset failed: %v\n", err)
			}
			session = uuid.NewString()
			fmt.Fprintln(out, "conversation cleared")
			continue
		case "/stats":
			printJSON(out, rt.learner.Stats(bot.BotID()))
			continue
		}

		resp := bot.ProcessMessage(ctx, model.InboundMessage{Text: line, UserID: userIDArg, SessionID: session})
		printResponse(out, bot.Config.Name, resp)
	}
}

func printResponse(out io.Writer, name string, resp model.Response) {
	fmt.Fprintf(out, "%s> %s\n", name, resp.Text)
	for _, a := range resp.Actions {
		status := "ok"
		if !a.Success {
			status = "failed: " + a.Error
		}
		fmt.Fprintf(out, "  [action %s %s]\n", a.Type, status)
	}
	if len(resp.Suggestions) > 0 {
		fmt.Fprintf(out, "  suggestions: %s\n", strings.Join(resp.Suggestions, " | "))
	}
}

func printJSON(out io.Writer, v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Fprintln(out, string(b))
}
