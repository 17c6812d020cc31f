package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/templui/marketplace/internal/config"
	"github.com/templui/marketplace/internal/service"
)

func TokenCmd() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if cfg.IsProduction() {
				return fmt.Errorf("refusing to mint tokens with APP_ENV=%s", cfg.AppEnv)
			}

			token, err := service.NewAuthService(cfg.JWTSecret, cfg.JWTExpiry).GenerateJWT(userID)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user id to put in the token subject")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
