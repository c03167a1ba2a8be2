// Command instrumentctl sends commands to instruments described by a
// deployment file and exports their metrics.
//
//	instrumentctl list
//	instrumentctl send -c deployment.yaml TR move_to -1200 3100
//	instrumentctl status -c deployment.yaml HT
//	instrumentctl serve -c deployment.yaml --poll HT:get_temperature:10s
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
