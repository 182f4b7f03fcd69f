// Command genkey prints a random JWT signing secret in .env format.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/dom/autosalon/internal/auth"
)

func main() {
	size := flag.Int("bytes", 64, "secret size in bytes")
	flag.Parse()

	if *size < 32 {
		log.Fatalf("secret must be at least 32 bytes, got %d", *size)
	}

	secret, err := auth.RandomToken(*size)
	if err != nil {
		log.Fatalf("failed to generate secret: %v", err)
	}
	fmt.Printf("JWT_SECRET=%s\n", secret)
}
