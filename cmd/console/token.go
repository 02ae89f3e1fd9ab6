package main

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/noah-isme/gema-exam-console/internal/middleware"
)

func newTokenCmd() *cobra.Command {
	var (
		secret string
		userID uint
		role   string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a signed bearer token for local development",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if secret == "" {
				v := viper.New()
				v.SetEnvPrefix("GEMA")
				v.AutomaticEnv()
				secret = v.GetString("JWT_SECRET")
			}
			if secret == "" {
				return fmt.Errorf("jwt secret must be provided with --secret or GEMA_JWT_SECRET")
			}

			signed, err := mintToken(secret, userID, role, ttl, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), signed)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&secret, "secret", "", "HMAC secret shared with the API")
	f.UintVar(&userID, "user", 1, "User ID placed in the sub claim")
	f.StringVar(&role, "role", "teacher", "admin, teacher or student")
	f.DurationVar(&ttl, "ttl", 12*time.Hour, "Token lifetime")
	return cmd
}

func mintToken(secret string, userID uint, role string, ttl time.Duration, now time.Time) (string, error) {
	claims := middleware.NewClaims(userID, role, uuid.NewString(), now, ttl)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
