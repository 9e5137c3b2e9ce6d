package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"teranga.app/internal/session"
)

func (a *app) loginCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and persist the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" {
				email = askLine("Email: ")
			}
			if password == "" {
				password = askLine("Password: ")
			}
			user, err := a.sess.Login(cmd.Context(), session.LoginInput{Email: email, Password: password})
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Signed in as %s %s <%s>\n", user.FirstName, user.LastName, user.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	return cmd
}

func (a *app) signupCmd() *cobra.Command {
	var input session.SignupInput
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Register a new back office account",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := a.sess.Signup(cmd.Context(), input)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Account created for %s <%s>\n", user.FirstName, user.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&input.Email, "email", "", "account email")
	cmd.Flags().StringVar(&input.Password, "password", "", "account password")
	cmd.Flags().StringVar(&input.ConfirmPassword, "confirm-password", "", "repeat the password")
	cmd.Flags().StringVar(&input.FirstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&input.LastName, "last-name", "", "last name")
	return cmd
}

func (a *app) forgotPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "forgot-password <email>",
		Short: "Request a password reset email",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.sess.ResetPassword(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Password reset email sent to %s\n", args[0])
			return nil
		},
	}
}

func (a *app) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the session and every cached entity",
		RunE: func(cmd *cobra.Command, args []string) error {
			a.sess.Logout(cmd.Context())
			fmt.Fprintln(a.out, "Signed out")
			return nil
		},
	}
}

func (a *app) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireSession(); err != nil {
				return err
			}
			user, ok := a.sess.CurrentUser()
			if !ok {
				fmt.Fprintln(a.out, "Signed in (no stored account summary)")
				return nil
			}
			fmt.Fprintf(a.out, "%s %s <%s>\n", user.FirstName, user.LastName, user.Email)
			if exp, ok := a.sess.TokenExpiry(); ok {
				fmt.Fprintf(a.out, "Access token expires %s\n", exp.Local().Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}
}

func askLine(question string) string {
	fmt.Fprint(os.Stdout, question)
	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	return strings.TrimSpace(line)
}
