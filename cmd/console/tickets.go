package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"teranga.app/internal/tickets"
)

func (a *app) ticketsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tickets",
		Short: "Manage support tickets",
	}
	cmd.AddCommand(
		a.ticketsListCmd(),
		a.ticketsCreateCmd(),
		a.ticketsUpdateCmd(),
		a.ticketsStatusCmd(),
		a.ticketsDeleteCmd(),
	)
	return cmd
}

func (a *app) ticketsStore() *tickets.Store {
	return tickets.New(a.client, a.caches, a.confirm)
}

func (a *app) ticketsListCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List support tickets",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireSession(); err != nil {
				return err
			}
			store := a.ticketsStore()
			if err := store.Fetch(cmd.Context(), force); err != nil {
				return err
			}
			items := store.Tickets()
			if len(items) == 0 {
				fmt.Fprintln(a.out, "No tickets")
				return nil
			}
			w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tPRIORITY\tUPDATED")
			for _, t := range items {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
					t.ID, t.Title, t.Status, t.Priority, t.UpdatedAt.Local().Format("2006-01-02 15:04"))
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "bypass the local cache")
	return cmd
}

func (a *app) ticketsCreateCmd() *cobra.Command {
	var input tickets.Input
	var priority string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Open a new ticket",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireSession(); err != nil {
				return err
			}
			input.Priority = tickets.Priority(priority)
			created, err := a.ticketsStore().Create(cmd.Context(), input)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Opened ticket %d: %s\n", created.ID, created.Title)
			return nil
		},
	}
	cmd.Flags().StringVar(&input.Title, "title", "", "ticket title")
	cmd.Flags().StringVar(&input.Description, "description", "", "what happened")
	cmd.Flags().StringVar(&priority, "priority", "medium", "low, medium or high")
	return cmd
}

func (a *app) ticketsUpdateCmd() *cobra.Command {
	var input tickets.Input
	var priority, status string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Replace a ticket's fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireSession(); err != nil {
				return err
			}
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("bad ticket id %q", args[0])
			}
			input.Priority = tickets.Priority(priority)
			input.Status = tickets.Status(status)
			store := a.ticketsStore()
			if err := store.Fetch(cmd.Context(), false); err != nil {
				return err
			}
			updated, err := store.Update(cmd.Context(), id, input)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Updated ticket %d (%s)\n", updated.ID, updated.Status)
			return nil
		},
	}
	cmd.Flags().StringVar(&input.Title, "title", "", "ticket title")
	cmd.Flags().StringVar(&input.Description, "description", "", "what happened")
	cmd.Flags().StringVar(&priority, "priority", "medium", "low, medium or high")
	cmd.Flags().StringVar(&status, "status", "", "open, in_progress or closed")
	return cmd
}

func (a *app) ticketsStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <id> <open|in_progress|closed>",
		Short: "Move a ticket through its lifecycle",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireSession(); err != nil {
				return err
			}
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("bad ticket id %q", args[0])
			}
			store := a.ticketsStore()
			if err := store.Fetch(cmd.Context(), false); err != nil {
				return err
			}
			updated, err := store.SetStatus(cmd.Context(), id, tickets.Status(args[1]))
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Ticket %d is now %s\n", updated.ID, updated.Status)
			return nil
		},
	}
}

func (a *app) ticketsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a ticket (asks for confirmation)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireSession(); err != nil {
				return err
			}
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("bad ticket id %q", args[0])
			}
			store := a.ticketsStore()
			if err := store.Fetch(cmd.Context(), false); err != nil {
				return err
			}
			if err := store.Delete(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Deleted ticket %d\n", id)
			return nil
		},
	}
}
