package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/burhanmukhtar/Molly-Pro/internal/mailer/account"
	"github.com/burhanmukhtar/Molly-Pro/internal/mailer/db"
	"github.com/burhanmukhtar/Molly-Pro/internal/mailer/infrastructure/store"
	"github.com/spf13/cobra"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage mailer accounts",
}

var userCreateOpts struct {
	username string
	points   int64
	role     string
}

// userCreateCmd provisions an account directly in the database. The password
// is read from stdin so it stays out of shell history.
var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an account",
	Example: `  echo -n 's3cret-pass' | mailer user create --username alice --points 2000
  mailer user create --username root --role admin < admin-password.txt`,
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := readPassword(cmd.InOrStdin())
		if err != nil {
			return err
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log := newLogger(cfg, "mailer.user")

		sqlStore, err := db.NewStore(&db.Config{
			Path:            cfg.DB.Path,
			MaxOpenConns:    cfg.DB.MaxOpenConns,
			MaxIdleConns:    cfg.DB.MaxIdleConns,
			ConnMaxLifetime: cfg.DB.ConnMaxLifetime,
		})
		if err != nil {
			return err
		}
		defer sqlStore.Close()

		accounts := account.NewService(store.NewAccountRepository(sqlStore, nil, log), 0, log)
		acc, err := accounts.CreateUser(cmd.Context(), userCreateOpts.username, password,
			userCreateOpts.points, account.Role(userCreateOpts.role))
		if err != nil {
			return err
		}

		cmd.Printf("created %s account %s (id %s) with %d points\n", acc.Role, acc.Username, acc.ID, acc.Points)
		return nil
	},
}

func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read password from stdin: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", errors.New("password must be provided on stdin")
	}
	return password, nil
}

func init() {
	userCreateCmd.Flags().StringVarP(&userCreateOpts.username, "username", "u", "", "account username")
	userCreateCmd.Flags().Int64VarP(&userCreateOpts.points, "points", "p", 0, "initial points balance")
	userCreateCmd.Flags().StringVar(&userCreateOpts.role, "role", string(account.RoleUser), "account role (user or admin)")
	_ = userCreateCmd.MarkFlagRequired("username")

	userCmd.AddCommand(userCreateCmd)
	rootCmd.AddCommand(userCmd)
}
