package cmd

import (
	"fmt"
	"os"

	"github.com/ethereum-optimism/optimism/op-service/jsonutil"
	"github.com/urfave/cli/v2"

	"github.com/lc3zk/lc3zk/lc3go/fast"
)

var OutFilePerm = os.FileMode(0o755)

func Load(ctx *cli.Context) error {
	path := ctx.Path(LoadPathFlag.Name)
	p, err := fast.LoadObjectFile(path)
	if err != nil {
		return err
	}
	state, err := fast.NewProgramState(p)
	if err != nil {
		return fmt.Errorf("failed to load %q into VM state: %w", path, err)
	}
	commandLogger(ctx).Info("loaded program",
		"origin", fast.HexU16(p.Origin),
		"words", len(p.Words),
		"commitment", p.Commitment())
	return jsonutil.WriteJSON(ctx.Path(LoadOutFlag.Name), state, OutFilePerm)
}

var LoadCommand = &cli.Command{
	Name:        "load",
	Usage:       "Load an LC-3 object file into a JSON state",
	Description: "Load an LC-3 object file, together with the trap routines, into a JSON state ready to run.",
	Action:      Load,
	Flags: []cli.Flag{
		LoadPathFlag,
		LoadOutFlag,
		VerboseFlag,
	},
}
