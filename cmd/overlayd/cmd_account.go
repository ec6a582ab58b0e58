package main

import (
	"fmt"
	"os"
)

func runAccount(args []string) {
	fs := newConfigFlagSet("account")
	if err := fs.Parse(args); err != nil {
		fatal("account: %v", err)
	}
	rest := fs.Args()
	if len(rest) != 1 {
		fatal("account: expected exactly one <account-id> argument")
	}

	client, err := connectDaemon(fs)
	if err != nil {
		fatal("account: %v", err)
	}

	resp, err := client.AccountOwner(rest[0])
	if err != nil {
		fatal("account: %v", err)
	}
	fmt.Fprintf(os.Stdout, "%s -> %s\n", resp.AccountID, resp.Owner)
}
