// Command tokengen mints HS256 bearer tokens for the auth participant and
// hashes API keys for the api_key participant.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tjfontaine/relaypipe/internal/participant"
)

func main() {
	secret := flag.String("secret", os.Getenv("RELAYPIPE_AUTH_SECRET"), "HMAC secret (default $RELAYPIPE_AUTH_SECRET)")
	subject := flag.String("sub", "", "token subject")
	issuer := flag.String("iss", "", "token issuer")
	audience := flag.String("aud", "", "token audience")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	hashKey := flag.String("hash", "", "print the config entry for this API key instead of minting a token")
	flag.Parse()

	if *hashKey != "" {
		fmt.Print(keyEntry(*subject, *hashKey))
		return
	}

	if *secret == "" || *subject == "" {
		fmt.Println("Usage: go run ./cmd/tokengen -secret <secret> -sub <subject> [-iss issuer] [-aud audience] [-ttl 1h]")
		fmt.Println("       go run ./cmd/tokengen -hash <api-key> [-sub subject]")
		os.Exit(1)
	}

	token, err := mint(*secret, *subject, *issuer, *audience, *ttl, time.Now())
	if err != nil {
		fmt.Fprintf(os.Stderr, "mint token: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(token)
}

func mint(secret, subject, issuer, audience string, ttl time.Duration, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	if audience != "" {
		claims.Audience = jwt.ClaimStrings{audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// keyEntry renders the api_key stage entry for key.
func keyEntry(subject, key string) string {
	if subject == "" {
		subject = "changeme"
	}
	return fmt.Sprintf("keys:\n  - subject: %s\n    key_hash: %q\n", subject, participant.HashAPIKey(key))
}
