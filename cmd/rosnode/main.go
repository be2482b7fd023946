// Command rosnode runs a standalone ROS node: a Slave XMLRPC server, a
// TCPROS listener, and the registry/pool plumbing that backs both,
// driven entirely by configuration (no built-in topics/services of its
// own). Application code wires its own Callbacks by importing
// github.com/openrobots-dev/rosnode/node directly; this binary is the
// bare supervisor, useful for smoke-testing a Master or as a starting
// point for a real node.
package main

import (
	"fmt"
	"os"

	"github.com/openrobots-dev/rosnode/cmd/rosnode/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
