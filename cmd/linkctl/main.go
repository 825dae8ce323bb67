// Command linkctl is the operator tool for download links: it encodes and
// decodes tokens offline and drives the admin API of a running server.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
