package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"learnhub/internal/identity"
	"learnhub/internal/service"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
}

var promoteCmd = &cobra.Command{
	Use:   "promote <username>",
	Short: "Grant the admin role to a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		users := service.NewUserService(db, nil, app.cfg.Location(), app.log)
		user, err := users.PromoteByUsername(args[0])
		if err != nil {
			return err
		}
		cmd.Printf("%s (id %d) is now %s\n", user.Username, user.ID, user.Role)
		return nil
	},
}

var (
	tokenEmail string
	tokenName  string
	tokenTTL   time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token <subject>",
	Short: "Mint a bearer token for an identity",
	Long: `Mint a bearer token signed with IDENTITY_JWT_SECRET, as the identity
provider would. Useful for scripting against the API.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		verifier := identity.NewVerifier(app.cfg.IdentityJWTSecret, app.cfg.IdentityJWTIssuer)
		if !verifier.Enabled() {
			return fmt.Errorf("IDENTITY_JWT_SECRET is not set")
		}
		token, err := verifier.Sign(identity.Identity{
			Subject: args[0],
			Email:   tokenEmail,
			Name:    tokenName,
		}, tokenTTL)
		if err != nil {
			return err
		}
		cmd.Println(token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenEmail, "email", "", "email claim")
	tokenCmd.Flags().StringVar(&tokenName, "name", "", "name claim")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", time.Hour, "token lifetime")

	userCmd.AddCommand(promoteCmd)
	rootCmd.AddCommand(userCmd, tokenCmd)
}
