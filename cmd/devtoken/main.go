// Command devtoken mints a seller bearer token signed with the configured
// auth secret, for calling the seller routes locally.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"seller-payout-service/config"
	"seller-payout-service/internal/service"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

func main() {
	sellerID := flag.String("seller", "", "seller id (random UUID when empty)")
	email := flag.String("email", "", "email address challenge codes are sent to")
	ttl := flag.Duration("ttl", 0, "token lifetime (defaults to auth.token_ttl)")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("SPS_CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Auth.JWTSecret == "" {
		fmt.Fprintln(os.Stderr, "auth.jwt_secret is not set (SPS_AUTH_JWT_SECRET)")
		os.Exit(1)
	}

	if *sellerID == "" {
		*sellerID = uuid.NewString()
	}
	expiry := cfg.Auth.TokenTTL
	if *ttl > 0 {
		expiry = *ttl
	}

	token, expiresAt, err := service.NewJWTTokenService(cfg.Auth.JWTSecret, expiry, cfg.Auth.Issuer).Generate(*sellerID, *email)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to sign token: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("seller:  %s\nexpires: %s\n\n%s\n", *sellerID, expiresAt.UTC().Format(time.RFC3339), token)
}
