package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	estateAuth "github.com/MrEthical07/estateAuth"
	"github.com/MrEthical07/estateAuth/session"
)

var (
	emailFlag    string
	nameFlag     string
	roleFlag     string
	passwordFlag string
	stdinFlag    bool
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage accounts",
}

var usersCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Provision an account with any role",
	Long:  `Creates an account directly in the database. This is the only way to create admin and superadmin accounts.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if emailFlag == "" {
			return fmt.Errorf("--email flag is required")
		}
		role, ok := session.ParseRole(roleFlag)
		if !ok {
			return fmt.Errorf("unknown role %q", roleFlag)
		}

		password := passwordFlag
		if stdinFlag {
			scanner := bufio.NewScanner(os.Stdin)
			fmt.Fprint(cmd.ErrOrStderr(), "Enter password: ")
			if scanner.Scan() {
				password = strings.TrimRight(scanner.Text(), "\r")
			}
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}
		}
		if password == "" {
			return fmt.Errorf("password is required (use --password or --stdin)")
		}

		db, err := openDB(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		// Accounts are provisioned offline; no throttling or cache peers are involved.
		engine, err := estateAuth.New().
			WithConfig(cfg).
			WithDB(db).
			WithLogger(logger).
			Build()
		if err != nil {
			return fmt.Errorf("failed to build engine: %w", err)
		}
		defer engine.Close()

		name := nameFlag
		if name == "" {
			name = strings.Split(emailFlag, "@")[0]
		}

		user, err := engine.CreateUser(cmd.Context(), estateAuth.RegisterInput{
			Email:    emailFlag,
			Password: password,
			Name:     name,
			Role:     role,
		})
		if err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s) id=%s\n", user.Email, user.Role, user.ID)
		return nil
	},
}

func init() {
	usersCreateCmd.Flags().StringVar(&emailFlag, "email", "", "Account email")
	usersCreateCmd.Flags().StringVar(&nameFlag, "name", "", "Display name (defaults to the email local part)")
	usersCreateCmd.Flags().StringVar(&roleFlag, "role", string(session.RoleUser), "One of user, agent, admin, superadmin")
	usersCreateCmd.Flags().StringVar(&passwordFlag, "password", "", "Account password")
	usersCreateCmd.Flags().BoolVar(&stdinFlag, "stdin", false, "Read the password from stdin")

	usersCmd.AddCommand(usersCreateCmd)
}
