package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nexo-app/nexo/internal/auth"
	"github.com/nexo-app/nexo/internal/config"
	"github.com/nexo-app/nexo/internal/store"
)

var (
	userCreateName     string
	userCreatePassword string
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage user accounts",
}

var userCreateCmd = &cobra.Command{
	Use:   "create <email>",
	Short: "Create a user account",
	Args:  cobra.ExactArgs(1),
	RunE:  runUserCreate,
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List user accounts",
	Args:  cobra.NoArgs,
	RunE:  runUserList,
}

func init() {
	userCreateCmd.Flags().StringVar(&userCreateName, "name", "", "Display name")
	userCreateCmd.Flags().StringVar(&userCreatePassword, "password", "", "Password (prompted for via NEXO_PASSWORD if empty)")
	userCmd.AddCommand(userCreateCmd)
	userCmd.AddCommand(userListCmd)
	rootCmd.AddCommand(userCmd)
}

// openStore connects to the configured database.
func openStore() (*store.Store, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	st, err := store.New(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	return st, cfg, nil
}

func runUserCreate(cmd *cobra.Command, args []string) error {
	st, cfg, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	if err := st.Migrate(ctx); err != nil {
		return err
	}

	password := userCreatePassword
	if password == "" {
		password = os.Getenv("NEXO_PASSWORD")
	}
	if password == "" {
		return fmt.Errorf("password required: use --password or NEXO_PASSWORD")
	}

	a := auth.New(st, cfg.JWTSecret, cfg.AccessTokenExpires)
	user, err := a.CreateUser(ctx, args[0], userCreateName, password)
	if err != nil {
		return err
	}

	fmt.Printf("created user %s (%s)\n", user.Email, user.ID)
	return nil
}

func runUserList(cmd *cobra.Command, args []string) error {
	st, _, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	users, err := st.ListUsers(context.Background())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tEMAIL\tNAME\tACTIVE\tCREATED")
	for _, u := range users {
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n",
			u.ID, u.Email, u.Name, u.IsActive, u.CreatedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}
