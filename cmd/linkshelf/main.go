// Command linkshelf is a command-line client for a linkshelf server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/mikepea/linkshelf/pkg/linkshelf/errx"
	"github.com/mikepea/linkshelf/pkg/linkshelf/httpclient"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		switch {
		case httpclient.ServerMessage(err) != "":
			fmt.Fprintln(os.Stderr, "server:", httpclient.ServerMessage(err))
		case errx.Is(err, errx.Timeout), errx.Is(err, errx.Transport):
			// already reported by the client notifier
		default:
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}
