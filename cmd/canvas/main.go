// Command canvas works on diagram snapshot files without a server: it lays
// them out, prints edge routes, checks references and exports flowcharts.
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
