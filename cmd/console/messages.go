package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"teranga.app/internal/messages"
)

func (a *app) messagesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "messages",
		Short: "Staff messaging inbox",
	}
	cmd.AddCommand(
		a.messagesListCmd(),
		a.messagesUsersCmd(),
		a.messagesSendCmd(),
		a.messagesReadCmd(),
		a.messagesDeleteCmd(),
	)
	return cmd
}

func (a *app) messagesStore() *messages.Store {
	self := func() (messages.Party, bool) {
		u, ok := a.sess.CurrentUser()
		if !ok {
			return messages.Party{}, false
		}
		return messages.Party{
			ID:        u.ID,
			Email:     u.Email,
			FirstName: u.FirstName,
			LastName:  u.LastName,
		}, true
	}
	return messages.New(a.client, a.caches, a.confirm, self)
}

func (a *app) messagesListCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List inbox messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireSession(); err != nil {
				return err
			}
			store := a.messagesStore()
			if err := store.Fetch(cmd.Context(), force); err != nil {
				return err
			}
			items := store.Messages()
			if len(items) == 0 {
				fmt.Fprintln(a.out, "No messages")
				return nil
			}
			w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tFROM\tTO\tREAD\tCONTENT")
			for _, m := range items {
				fmt.Fprintf(w, "%d\t%s\t%s\t%v\t%s\n",
					m.ID, m.Sender.Name(), m.Recipient.Name(), m.IsRead, m.Content)
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "bypass the local cache")
	return cmd
}

func (a *app) messagesUsersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List possible recipients",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireSession(); err != nil {
				return err
			}
			users, err := a.messagesStore().FetchUsers(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tEMAIL")
			for _, u := range users {
				fmt.Fprintf(w, "%d\t%s\t%s\n", u.ID, u.Name(), u.Email)
			}
			return w.Flush()
		},
	}
}

func (a *app) messagesSendCmd() *cobra.Command {
	var to int64
	var content string
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a message to another staff member",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireSession(); err != nil {
				return err
			}
			store := a.messagesStore()
			// The optimistic record needs the recipient's directory entry.
			if _, err := store.FetchUsers(cmd.Context()); err != nil {
				return err
			}
			sent, err := store.Send(cmd.Context(), messages.SendInput{RecipientID: to, Content: content})
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Sent message %d to %s\n", sent.ID, sent.Recipient.Name())
			return nil
		},
	}
	cmd.Flags().Int64Var(&to, "to", 0, "recipient user id")
	cmd.Flags().StringVar(&content, "content", "", "message body")
	return cmd
}

func (a *app) messagesReadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "read <id>",
		Short: "Mark a message as read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireSession(); err != nil {
				return err
			}
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("bad message id %q", args[0])
			}
			store := a.messagesStore()
			if err := store.Fetch(cmd.Context(), false); err != nil {
				return err
			}
			if err := store.MarkRead(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Marked message %d as read\n", id)
			return nil
		},
	}
}

func (a *app) messagesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a message (asks for confirmation)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireSession(); err != nil {
				return err
			}
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("bad message id %q", args[0])
			}
			store := a.messagesStore()
			if err := store.Fetch(cmd.Context(), false); err != nil {
				return err
			}
			if err := store.Delete(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Deleted message %d\n", id)
			return nil
		},
	}
}
