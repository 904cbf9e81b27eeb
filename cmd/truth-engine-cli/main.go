// Command truth-engine-cli sends a broken program and its error log to a
// truth-engine server and streams the verification progress.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
