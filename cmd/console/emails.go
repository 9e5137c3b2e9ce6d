package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"teranga.app/internal/emails"
)

func (a *app) emailsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "emails",
		Short: "Outbound email log",
	}
	cmd.AddCommand(
		a.emailsListCmd(),
		a.emailsComposeCmd(),
		a.emailsDeleteCmd(),
	)
	return cmd
}

func (a *app) emailsStore() *emails.Store {
	return emails.New(a.client, a.caches, a.confirm)
}

func (a *app) emailsListCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List outbound emails",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireSession(); err != nil {
				return err
			}
			store := a.emailsStore()
			if err := store.Fetch(cmd.Context(), force); err != nil {
				return err
			}
			items := store.Emails()
			if len(items) == 0 {
				fmt.Fprintln(a.out, "No emails")
				return nil
			}
			w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTO\tSUBJECT\tSENT")
			for _, e := range items {
				sent := "pending"
				if e.IsSent && e.SentAt != nil {
					sent = e.SentAt.Local().Format("2006-01-02 15:04")
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", e.ID, e.Recipient, e.Subject, sent)
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "bypass the local cache")
	return cmd
}

func (a *app) emailsComposeCmd() *cobra.Command {
	var input emails.ComposeInput
	cmd := &cobra.Command{
		Use:   "compose",
		Short: "Queue an outbound email",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireSession(); err != nil {
				return err
			}
			created, err := a.emailsStore().Compose(cmd.Context(), input)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Queued email %d to %s\n", created.ID, created.Recipient)
			return nil
		},
	}
	cmd.Flags().StringVar(&input.Recipient, "to", "", "recipient address")
	cmd.Flags().StringVar(&input.Subject, "subject", "", "subject line")
	cmd.Flags().StringVar(&input.Body, "body", "", "email body")
	return cmd
}

func (a *app) emailsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an email (asks for confirmation)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireSession(); err != nil {
				return err
			}
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("bad email id %q", args[0])
			}
			store := a.emailsStore()
			if err := store.Fetch(cmd.Context(), false); err != nil {
				return err
			}
			if err := store.Delete(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Deleted email %d\n", id)
			return nil
		},
	}
}
