// gentoken issues a signed admin JWT for local development and manual
// API testing. Never use against a production deployment.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	adminID := flag.String("admin", "dev-admin", "admin identifier to embed in the token")
	role := flag.String("role", "supervisor", "role claim: supervisor, compliance_officer, analyst, auditor")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("JWT_SECRET environment variable is required")
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"admin_id": *adminID,
		"role":     *role,
		"iat":      now.Unix(),
		"exp":      now.Add(*ttl).Unix(),
	})

	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		log.Fatalf("Failed to sign token: %v", err)
	}

	fmt.Println(signed)
}
