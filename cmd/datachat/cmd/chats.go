package cmd

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newChatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chats",
		Short: "Manage chat histories",
	}
	cmd.AddCommand(newChatsListCmd())
	cmd.AddCommand(newChatsNewCmd())
	cmd.AddCommand(newChatsShowCmd())
	return cmd
}

func newChatsListCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List chats, most recently updated first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				chats, err := a.store.ListChats(ctx, limit)
				if err != nil {
					return err
				}
				if len(chats) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "no chats")
					return nil
				}
				for _, c := range chats {
					fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  (session %s, updated %s)\n",
						c.ChatID, c.Title, c.SessionID, c.UpdatedAt)
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum chats to list (default 50)")
	return cmd
}

func newChatsNewCmd() *cobra.Command {
	var (
		sessionID string
		title     string
	)

	cmd := &cobra.Command{
		Use:   "new",
		Short: "Create a chat bound to a session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				rec, err := a.store.CreateChat(ctx, uuid.NewString(), title, sessionID)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), rec.ChatID)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "Session the chat belongs to")
	cmd.Flags().StringVar(&title, "title", "", "Chat title")
	_ = cmd.MarkFlagRequired("session")
	return cmd
}

func newChatsShowCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "show <chat>",
		Short: "Print a chat's messages in order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				rec, err := a.store.GetChat(ctx, args[0])
				if err != nil {
					return err
				}
				if rec == nil {
					return fmt.Errorf("chat %s not found", args[0])
				}
				msgs, err := a.store.ListMessages(ctx, args[0], limit)
				if err != nil {
					return err
				}
				for _, m := range msgs {
					fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s\n", m.Role, m.Content)
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum messages to print (default 200)")
	return cmd
}
