// Command customer-audit finds duplicate Stripe customers for an email and
// deletes the ones that carry no billing history.
package main

import (
	"fmt"
	"os"
)

func main() {
	rootCmd := newRootCmd(newStripeAuditor, os.Stdout)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
