// Command rexec runs a remote command execution group: one dispatcher,
// one or more workers and the clients they serve.
//
// Usage:
//
//	rexec local [--size N] [--workers W] [interactive]
//	rexec node --rank R [interactive]
//	rexec config
//
// "local" runs the whole group inside one process. "node" runs a single
// rank and reaches the others over HTTP using the peers file, one process
// per rank. Settings come from --config, REXEC_* environment variables and
// built-in defaults; "rexec config" prints the defaults as TOML.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
