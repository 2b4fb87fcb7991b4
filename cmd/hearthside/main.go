// Command hearthside is a command-line client for the Hearthside API.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	hearthside "github.com/hearthside/client-go"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args, DefaultConfig())
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, errorText(err))
		os.Exit(1)
	}
}

// errorText turns a failure into the line printed on stderr. Client errors
// use their user-facing message; everything else is printed as is.
func errorText(err error) string {
	switch {
	case errors.Is(err, hearthside.ErrNotAuthenticated):
		return "not logged in, run: hearthside login"
	case errors.Is(err, hearthside.ErrReauthRequired):
		return "session expired, run: hearthside login"
	case hearthside.KindOf(err) != hearthside.KindUnknown:
		return hearthside.UserMessage(err)
	default:
		return err.Error()
	}
}
