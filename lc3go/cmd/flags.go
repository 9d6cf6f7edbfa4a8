package cmd

import (
	"github.com/urfave/cli/v2"
)

var (
	ProgramFlag = &cli.PathFlag{
		Name:      "program",
		Usage:     "path of the object file: big-endian words, the first one is the origin",
		TakesFile: true,
		Required:  true,
	}
	SRSFlag = &cli.PathFlag{
		Name:      "srs",
		Usage:     "path of the KZG reference string",
		TakesFile: true,
		Required:  true,
	}
	KeyboardFlag = &cli.PathFlag{
		Name:      "keyboard",
		Usage:     "file whose bytes feed the keyboard, empty for no input",
		TakesFile: true,
	}
	StepBoundFlag = &cli.Uint64Flag{
		Name:  "step-bound",
		Usage: "maximum number of steps the run may take",
		Value: 10_000,
	}
	VerboseFlag = &cli.BoolFlag{
		Name:  "verbose",
		Usage: "log at debug level",
	}
	PProfCPUFlag = &cli.BoolFlag{
		Name:  "pprof.cpu",
		Usage: "enable pprof cpu profiling",
	}

	LoadPathFlag = &cli.PathFlag{
		Name:      "path",
		Usage:     "path of the object file to load",
		TakesFile: true,
		Required:  true,
	}
	LoadOutFlag = &cli.PathFlag{
		Name:      "output",
		Usage:     "output path of the JSON state, '-' for stdout",
		TakesFile: true,
		Value:     "state.json",
	}

	RunInputFlag = &cli.PathFlag{
		Name:      "input",
		Usage:     "path of the JSON state to run from",
		TakesFile: true,
		Required:  true,
	}
	RunOutputFlag = &cli.PathFlag{
		Name:      "output",
		Usage:     "output path of the final JSON state, '-' for stdout, empty to skip",
		TakesFile: true,
		Value:     "out.json",
	}
	RunMaxStepsFlag = &cli.Uint64Flag{
		Name:  "max-steps",
		Usage: "fault the machine once this many steps ran without a halt, 0 for unbounded",
	}
	RunProofAtFlag = &cli.StringFlag{
		Name:  "proof-at",
		Usage: "step pattern to output a step witness at: " + matcherPatterns,
		Value: "never",
	}
	RunProofFmtFlag = &cli.StringFlag{
		Name:  "proof-fmt",
		Usage: "format for step witness output file names, formatted with the step",
		Value: "proof-%d.json",
	}
	RunSnapshotAtFlag = &cli.StringFlag{
		Name:  "snapshot-at",
		Usage: "step pattern to output a state snapshot at: " + matcherPatterns,
		Value: "never",
	}
	RunSnapshotFmtFlag = &cli.StringFlag{
		Name:  "snapshot-fmt",
		Usage: "format for snapshot output file names, formatted with the step",
		Value: "state-%d.json",
	}
	RunStopAtFlag = &cli.StringFlag{
		Name:  "stop-at",
		Usage: "step pattern to stop at: " + matcherPatterns,
		Value: "never",
	}
	RunInfoAtFlag = &cli.StringFlag{
		Name:  "info-at",
		Usage: "step pattern to log progress at: " + matcherPatterns,
		Value: "%100000",
	}
	RunLogOutputFlag = &cli.BoolFlag{
		Name:  "log-output",
		Usage: "log the display output instead of writing it to stdout",
	}

	SetupOutFlag = &cli.PathFlag{
		Name:      "output",
		Usage:     "output path of the reference string",
		TakesFile: true,
		Value:     "srs.bin",
	}

	ProveOutFlag = &cli.PathFlag{
		Name:      "output",
		Usage:     "output path of the proof artifact, '-' for stdout",
		TakesFile: true,
		Value:     "proof.json",
	}
	ProveDebugFlag = &cli.BoolFlag{
		Name:  "debug",
		Usage: "check every constraint before proving and report the first failing one",
	}
	ProveWorkersFlag = &cli.IntFlag{
		Name:  "workers",
		Usage: "parallel prover jobs, 0 for one per cpu",
	}

	VerifyProofFlag = &cli.PathFlag{
		Name:      "proof",
		Usage:     "path of the proof artifact",
		TakesFile: true,
		Required:  true,
	}

	WitnessInputFlag = &cli.PathFlag{
		Name:      "input",
		Usage:     "path of the JSON state",
		TakesFile: true,
		Required:  true,
	}
	WitnessOutputFlag = &cli.PathFlag{
		Name:      "output",
		Usage:     "output path of the witness JSON, '-' for stdout, empty to skip",
		TakesFile: true,
	}
)
