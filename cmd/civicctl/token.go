package main

import (
	"time"

	"github.com/spf13/cobra"

	jwttoken "civicid/internal/jwt_token"
	"civicid/pkg/domain"
)

func newTokenCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Work with platform bearer tokens",
	}

	mint := &cobra.Command{
		Use:   "mint <userId>",
		Short: "Sign an access token for local testing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := domain.ParseUserID(args[0])
			if err != nil {
				return err
			}
			svc := jwttoken.NewJWTService(
				c.v.GetString("token.signing-key"),
				c.v.GetString("token.issuer"),
				c.v.GetString("token.audience"),
			)
			ttl := c.v.GetDuration("token.ttl")
			token, err := svc.GenerateAccessToken(userID, "civicctl", ttl)
			if err != nil {
				return err
			}
			return c.print(map[string]any{
				"accessToken": token,
				"expiresIn":   int(ttl.Seconds()),
			})
		},
	}
	mint.Flags().String("signing-key", "dev-secret-key-change-in-production", flagInfo("HS256 signing key", "token.signing-key"))
	mint.Flags().String("issuer", "", flagInfo("token issuer", "token.issuer"))
	mint.Flags().String("audience", "", flagInfo("token audience", "token.audience"))
	mint.Flags().Duration("ttl", time.Hour, flagInfo("token lifetime", "token.ttl"))
	c.bind("token", mint.Flags())

	cmd.AddCommand(mint)
	return cmd
}
