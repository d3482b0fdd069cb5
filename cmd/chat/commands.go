package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/capitalize-ai/knowledge-chat/internal/app"
	"github.com/capitalize-ai/knowledge-chat/internal/model"
)

const shutdownTimeout = 2 * time.Minute

type openFunc func(ctx context.Context) (*app.Runtime, error)

func newRootCmd(open openFunc) *cobra.Command {
	root := &cobra.Command{
		Use:          "chat",
		Short:        "Search the knowledge base from the terminal",
		SilenceUsage: true,
	}

	root.AddCommand(
		newListCmd(open),
		newNewCmd(open),
		newShowCmd(open),
		newSendCmd(open),
	)
	return root
}

// withRuntime runs fn against a freshly hydrated runtime and persists the
// result before returning.
func withRuntime(cmd *cobra.Command, open openFunc, fn func(rt *app.Runtime) error) (err error) {
	rt, err := open(cmd.Context())
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err = errors.Join(err, rt.Shutdown(ctx))
	}()

	return fn(rt)
}

func newListCmd(open openFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List conversations, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, open, func(rt *app.Runtime) error {
				state := rt.Controller.State()
				out := cmd.OutOrStdout()

				if len(state.Conversations) == 0 {
					fmt.Fprintln(out, "No conversations yet. Start one with `chat new`.")
					return nil
				}

				for _, conv := range state.Conversations {
					marker := " "
					if state.ActiveConversationID != nil && *state.ActiveConversationID == conv.ID {
						marker = "*"
					}
					fmt.Fprintf(out, "%s %s  %s  (%d messages)\n", marker, conv.ID, conv.Title, len(conv.Messages))
				}
				return nil
			})
		},
	}
}

func newNewCmd(open openFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "new",
		Short: "Start a new conversation and make it active",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, open, func(rt *app.Runtime) error {
				id := rt.Controller.StartNewConversation()
				fmt.Fprintln(cmd.OutOrStdout(), id)
				return nil
			})
		},
	}
}

func newShowCmd(open openFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "show [conversation-id]",
		Short: "Print a conversation (default: the active one)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, open, func(rt *app.Runtime) error {
				var (
					conv model.Conversation
					ok   bool
				)
				if len(args) == 1 {
					conv, ok = rt.Store.Get(args[0])
				} else {
					conv, ok = rt.Controller.ActiveConversation()
				}
				if !ok {
					return errors.New("conversation not found")
				}

				printConversation(cmd.OutOrStdout(), conv)
				return nil
			})
		},
	}
}

func newSendCmd(open openFunc) *cobra.Command {
	var conversationID string

	cmd := &cobra.Command{
		Use:   "send [--conversation id] <text...>",
		Short: "Send a message and wait for the answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, open, func(rt *app.Runtime) error {
				if conversationID != "" {
					rt.Controller.SelectConversation(conversationID)
				}

				conv, ok := rt.Controller.ActiveConversation()
				if !ok {
					return errors.New("no active conversation, start one with `chat new`")
				}
				before := len(conv.Messages)

				rt.Controller.SubmitMessage(strings.Join(args, " "))

				if err := rt.Controller.Wait(cmd.Context()); err != nil {
					return err
				}

				conv, _ = rt.Store.Get(conv.ID)
				if len(conv.Messages) <= before+1 {
					return errors.New("no answer received")
				}
				for _, msg := range conv.Messages[before+1:] {
					printMessage(cmd.OutOrStdout(), msg)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&conversationID, "conversation", "c", "", "Conversation to send to (becomes active)")
	return cmd
}

func printConversation(w io.Writer, conv model.Conversation) {
	fmt.Fprintf(w, "# %s (%s)\n\n", conv.Title, conv.ID)
	for _, msg := range conv.Messages {
		printMessage(w, msg)
	}
}

func printMessage(w io.Writer, msg model.Message) {
	fmt.Fprintf(w, "%s: %s\n", msg.Role, msg.Content)
	for _, src := range msg.Sources {
		fmt.Fprintf(w, "  - %s <%s>\n", src.Title, src.URL)
	}
	fmt.Fprintln(w)
}
