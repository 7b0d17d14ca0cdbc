// Package main provides the netspeed command line tool.
//
// netspeed measures aggregate upload and download throughput across the
// host's physical network interfaces. It can print readings directly or
// run as a daemon that serves them over a UNIX socket and HTTP.
package main

import (
	"fmt"
	"os"
)

var (
	version = "dev"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
