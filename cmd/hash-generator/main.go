// Package main prints bcrypt hashes for seed data. Passwords come from the
// command line; the cost defaults to ACCOUNTS_AUTH_BCRYPT_COST when set.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/phrazzld/storefront-accounts/internal/service/auth"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "hash-generator: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	flags := flag.NewFlagSet("hash-generator", flag.ContinueOnError)
	flags.SetOutput(stderr)
	cost := flags.Int("cost", defaultCost(), "bcrypt cost factor")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() == 0 {
		return fmt.Errorf("usage: hash-generator [-cost n] <password>...")
	}

	hasher := auth.NewBcryptHasher(*cost)
	for _, password := range flags.Args() {
		hash, err := hasher.Hash(password)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}
		fmt.Fprintf(stdout, "Password: %s\nHash: %s\n\n", password, hash)
	}
	return nil
}

func defaultCost() int {
	if raw := os.Getenv("ACCOUNTS_AUTH_BCRYPT_COST"); raw != "" {
		if cost, err := strconv.Atoi(raw); err == nil {
			return cost
		}
	}
	return bcrypt.DefaultCost
}
