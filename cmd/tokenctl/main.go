// Command tokenctl administers users and tokens directly against the database.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(openDeps).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
