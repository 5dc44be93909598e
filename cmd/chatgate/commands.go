package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leofalp/chatgate/core/gateway"
	"github.com/leofalp/chatgate/providers/ai"
	"github.com/leofalp/chatgate/providers/memory"
)

// cli carries the persistent flags shared by every command.
type cli struct {
	configPath string
}

type runFunc func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error

// withApp builds the application for one command run and closes it afterwards.
func (c *cli) withApp(run runFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), c.configPath)
		if err != nil {
			return err
		}
		defer a.Close()
		return run(cmd.Context(), cmd, a, args)
	}
}

func newRootCommand() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:          "chatgate",
		Short:        "Chat with several LLM providers through one gateway",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "optional YAML configuration file")

	root.AddCommand(
		c.chatCommand("chat", "Generate one reply and store the turn", runChat),
		c.chatCommand("stream", "Like chat, printing the reply as it arrives", runStream),
		c.compareCommand(),
		c.conversationsCommand(),
	)
	return root
}

// chatOptions are the flags shared by chat and stream.
type chatOptions struct {
	input       gateway.ChatInput
	temperature float64
	noHistory   bool
}

func (o *chatOptions) chatInput(cmd *cobra.Command, args []string) gateway.ChatInput {
	input := o.input
	input.Message = strings.Join(args, " ")
	if cmd.Flags().Changed("temperature") {
		temperature := o.temperature
		input.Temperature = &temperature
	}
	if o.noHistory {
		includeHistory := false
		input.IncludeHistory = &includeHistory
	}
	return input
}

func (c *cli) chatCommand(use, short string, run func(context.Context, *cobra.Command, *app, gateway.ChatInput) error) *cobra.Command {
	opts := &chatOptions{}
	cmd := &cobra.Command{
		Use:   use + " <message>",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: c.withApp(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			return run(ctx, cmd, a, opts.chatInput(cmd, args))
		}),
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.input.Provider, "provider", "p", "openai", "provider name")
	flags.StringVarP(&opts.input.Model, "model", "m", "", "model override")
	flags.StringVarP(&opts.input.ConversationID, "conversation", "c", "", "conversation id (empty starts a new one)")
	flags.StringVar(&opts.input.SystemPrompt, "system", "", "system prompt")
	flags.IntVar(&opts.input.MaxTokens, "max-tokens", 0, "maximum tokens to generate")
	flags.Float64Var(&opts.temperature, "temperature", 0, "sampling temperature")
	flags.BoolVar(&opts.noHistory, "no-history", false, "do not send stored turns as context")
	return cmd
}

func runChat(ctx context.Context, cmd *cobra.Command, a *app, input gateway.ChatInput) error {
	output, err := a.gateway.Respond(ctx, input)
	if output != nil {
		fmt.Fprintln(cmd.OutOrStdout(), output.Response)
		fmt.Fprintf(cmd.ErrOrStderr(), "\n[conversation %s, model %s, %d tokens]\n", output.ConversationID, output.Model, output.Usage.TotalTokens)
	}
	return err
}

func runStream(ctx context.Context, cmd *cobra.Command, a *app, input gateway.ChatInput) error {
	frames, err := a.gateway.RespondStream(ctx, input)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for frame := range frames {
		switch {
		case frame.Delta != "":
			fmt.Fprint(out, frame.Delta)
		case frame.Error != "":
			fmt.Fprintln(out)
			return &ai.StreamError{Backend: input.Provider, Message: frame.Error}
		case frame.Done:
			fmt.Fprintln(out)
			fmt.Fprintf(cmd.ErrOrStderr(), "[conversation %s, %d tokens]\n", frame.ConversationID, frame.Usage.TotalTokens)
			if frame.StoreError != "" {
				return errors.New(frame.StoreError)
			}
		}
	}
	return nil
}

func (c *cli) compareCommand() *cobra.Command {
	var input gateway.CompareInput
	var temperature float64

	cmd := &cobra.Command{
		Use:   "compare <message>",
		Short: "Send one prompt to several providers at once",
		Args:  cobra.MinimumNArgs(1),
		RunE: c.withApp(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			request := input
			request.Message = strings.Join(args, " ")
			if len(request.Providers) == 0 {
				request.Providers = a.gateway.Providers()
			}
			if cmd.Flags().Changed("temperature") {
				request.Temperature = &temperature
			}

			results, err := a.gateway.Compare(ctx, request)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, result := range results {
				fmt.Fprintf(out, "=== %s (%s) ===\n", result.Provider, result.Status)
				if result.Status == gateway.StatusRejected {
					fmt.Fprintln(out, result.Error)
				} else {
					fmt.Fprintln(out, result.Response)
				}
				fmt.Fprintln(out)
			}
			return nil
		}),
	}

	flags := cmd.Flags()
	flags.StringSliceVar(&input.Providers, "providers", nil, "comma separated provider names (default: all)")
	flags.StringToStringVar(&input.Models, "models", nil, "per-provider model overrides, e.g. openai=gpt-4o,gemini=gemini-1.5-pro")
	flags.StringVar(&input.SystemPrompt, "system", "", "system prompt")
	flags.IntVar(&input.MaxTokens, "max-tokens", 0, "maximum tokens to generate")
	flags.Float64Var(&temperature, "temperature", 0, "sampling temperature")
	return cmd
}

func (c *cli) conversationsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"conv"},
		Short:   "Inspect and manage stored conversations",
	}

	var limit, offset int
	list := &cobra.Command{
		Use:   "list",
		Short: "List conversations, most recent first",
		Args:  cobra.NoArgs,
		RunE: c.withApp(func(ctx context.Context, cmd *cobra.Command, a *app, _ []string) error {
			records, err := a.gateway.Conversations(ctx, limit, offset)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), records)
		}),
	}
	list.Flags().IntVar(&limit, "limit", 20, "maximum number of results")
	list.Flags().IntVar(&offset, "offset", 0, "number of results to skip")

	get := &cobra.Command{
		Use:   "get <id>",
		Short: "Print a conversation with its metadata",
		Args:  cobra.ExactArgs(1),
		RunE: c.withApp(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			conversation, err := a.gateway.Conversation(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), conversation)
		}),
	}

	remove := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: c.withApp(func(ctx context.Context, _ *cobra.Command, a *app, args []string) error {
			return a.gateway.DeleteConversation(ctx, args[0])
		}),
	}

	var searchLimit int
	search := &cobra.Command{
		Use:   "search <query>",
		Short: "Search message contents, ignoring case",
		Args:  cobra.MinimumNArgs(1),
		RunE: c.withApp(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			results, err := a.gateway.SearchConversations(ctx, strings.Join(args, " "), searchLimit)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), results)
		}),
	}
	search.Flags().IntVar(&searchLimit, "limit", 20, "maximum number of results")

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Print totals over every conversation",
		Args:  cobra.NoArgs,
		RunE: c.withApp(func(ctx context.Context, cmd *cobra.Command, a *app, _ []string) error {
			totals, err := a.gateway.Stats(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), totals)
		}),
	}

	var format string
	export := &cobra.Command{
		Use:   "export <id>",
		Short: "Export a conversation as JSON or text",
		Args:  cobra.ExactArgs(1),
		RunE: c.withApp(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			data, err := a.gateway.Export(ctx, args[0], memory.ExportFormat(format))
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		}),
	}
	export.Flags().StringVar(&format, "format", string(memory.ExportJSON), "export format: json or text")

	var importID string
	importCmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Import a message array or an export document (stdin when no file)",
		Args:  cobra.MaximumNArgs(1),
		RunE: c.withApp(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			data, err := readInput(cmd.InOrStdin(), path)
			if err != nil {
				return err
			}
			imported, err := a.gateway.Import(ctx, data, importID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), imported)
			return nil
		}),
	}
	importCmd.Flags().StringVar(&importID, "id", "", "conversation id (empty generates one)")

	cmd.AddCommand(list, get, remove, search, stats, export, importCmd)
	return cmd
}

// readInput reads path, or stdin when path is empty or "-".
func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

func printJSON(out io.Writer, value any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
