package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/lc3zk/lc3zk/lc3go/cmd"
)

func main() {
	app := cli.NewApp()
	app.Name = "lc3zk"
	app.Usage = "LC-3 emulator with proofs of execution"
	app.Description = "Run LC-3 programs and prove, or verify, that a run halted with a given output."
	app.Commands = []*cli.Command{
		cmd.LoadCommand,
		cmd.RunCommand,
		cmd.WitnessCommand,
		cmd.SetupCommand,
		cmd.ProveCommand,
		cmd.VerifyCommand,
	}
	ctx, cancel := context.WithCancel(context.Background())

	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		for {
			<-c
			cancel()
			fmt.Println("\r\nExiting...")
		}
	}()

	err := app.RunContext(ctx, os.Args)
	if err != nil {
		if errors.Is(err, ctx.Err()) {
			_, _ = fmt.Fprintf(os.Stderr, "command interrupted")
			os.Exit(130)
		} else {
			_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	}
}
