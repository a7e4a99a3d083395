// Command notebookctl is the operator CLI: it applies migrations, manages
// local accounts and prunes sessions.
package main

import "os"

func main() {
	if err := newRootCmd(openBackend).Execute(); err != nil {
		os.Exit(1)
	}
}
