// ossl-echo runs a TLS echo server or client over the session driver.
//
// The server answers every connection with a TLS session and writes back
// what it reads. The client sends each line of stdin and prints the echo.
//
// Usage:
//
//	ossl-echo server|client [options]
//
// Options:
//
//	-addr      listen or dial address (default: localhost:4433)
//	-cert      PEM certificate file (server default: self-signed)
//	-key       PEM private key file
//	-ca        PEM CA bundle for peer verification
//	-verify    none, peer or require (default: none)
//	-ciphers   OpenSSL-style cipher string
//	-version   context method, e.g. TLSv1_2 (default: SSLv23)
//	-hostname  server name to send and verify (default: localhost)
//	-timeout   handshake timeout (default: 10s)
//	-config    TOML file providing defaults for the options above
//	-advertise publish the server over mDNS
//	-discover  find the server over mDNS
//	-nonblock  drive the session with the non-blocking calls
//	-v         verbose logging
//
// Example:
//
//	ossl-echo server -addr :4433 -advertise
//	ossl-echo client -discover -verify none
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/backkem/ossl/examples/common"
	"github.com/backkem/ossl/examples/echo"
)

func main() {
	opts, err := common.ParseArgs(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, stop := common.WaitForSignal(context.Background())
	defer stop()

	if err := echo.Run(ctx, opts, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
