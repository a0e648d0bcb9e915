// Command migrate manages the gateway's schema in the LiteLLM Postgres
// database.
//
// Usage:
//
//	migrate up
//	migrate down
//	migrate version --database-url postgres://...
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
