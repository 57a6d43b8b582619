package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/anoixa/menu-storage/api/middleware"
	"github.com/anoixa/menu-storage/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// tokenCmd 签发管理接口使用的 JWT，密钥取自 AUTH_JWT_SECRET
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for the storage admin API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		subject, _ := cmd.Flags().GetString("subject")
		role, _ := cmd.Flags().GetString("role")
		ttl, _ := cmd.Flags().GetDuration("ttl")
		if ttl <= 0 {
			return errors.New("--ttl must be positive")
		}

		now := time.Now()
		token, err := middleware.SignToken([]byte(config.Get().AuthJWTSecret), middleware.Claims{
			Role: role,
			RegisteredClaims: jwt.RegisteredClaims{
				ID:        uuid.NewString(),
				Subject:   subject,
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			},
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().String("subject", "admin", "token subject")
	tokenCmd.Flags().String("role", middleware.RoleAdmin, "token role")
	tokenCmd.Flags().Duration("ttl", 24*time.Hour, "token lifetime")
}
