package main

import (
	"bufio"
	"fmt"
	"markwiki/internal/auth"
	"markwiki/internal/data"
	"markwiki/internal/service"
	"strings"

	"github.com/spf13/cobra"
)

func newUserCmd(a *app) *cobra.Command {
	user := &cobra.Command{
		Use:   "user",
		Short: "Manage wiki accounts",
	}

	var password string
	add := &cobra.Command{
		Use:   "add <username>",
		Short: "Register a new account",
		Long: `Register a new account. The password is taken from --password or,
when omitted, read as the first line of standard input.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("failed to read password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}

			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			svc := service.NewAuthService(data.NewSQLUserRepository(db), auth.NewHasher(a.cfg.Wiki.BcryptCost), a.log)
			if err := svc.RegisterUser(cmd.Context(), args[0], password); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "User %s created\n", args[0])
			return nil
		},
	}
	add.Flags().StringVarP(&password, "password", "p", "", "password for the new account")

	user.AddCommand(add)
	return user
}
