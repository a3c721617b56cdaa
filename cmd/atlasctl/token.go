package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"Atlas/config"
	"Atlas/pkg/token"
)

var (
	tokenTTL   time.Duration
	tokenQuiet bool
)

// tokenCmd 账号体系在外部，本地联调时用它签发 bearer token
var tokenCmd = &cobra.Command{
	Use:   "token <user-id>",
	Short: "Mint a bearer token for a user id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := parseUserID(args[0])
		if err != nil {
			return err
		}
		if config.Cfg.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required to sign tokens")
		}
		if err := token.Init(); err != nil {
			return err
		}

		accessToken, expiresAt, err := token.GenerateAccessToken(userID.String(), tokenTTL)
		if err != nil {
			return err
		}

		if tokenQuiet {
			fmt.Println(accessToken)
			return nil
		}
		printSuccess("Token minted")
		printLabelValue("user_id", userID.String())
		printLabelValue("expires_at", expiresAt.Format(time.RFC3339))
		printLabelValue("token", accessToken)
		return nil
	},
}

func init() {
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "Token lifetime (default JWT_EXPIRE_MINUTES)")
	tokenCmd.Flags().BoolVarP(&tokenQuiet, "quiet", "q", false, "Print only the token")
}

func parseUserID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("invalid user id %q: must be a non-nil UUID", raw)
	}
	return id, nil
}
