package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ethereum-optimism/optimism/op-service/jsonutil"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/profile"
	"github.com/urfave/cli/v2"

	"github.com/lc3zk/lc3zk/lc3go/fast"
)

// Proof is the data to replay a single step with slow.Step.
type Proof struct {
	Step uint64 `json:"step"`

	Pre  common.Hash `json:"pre"`
	Post common.Hash `json:"post"`

	StateData hexutil.Bytes `json:"state-data"`
	ProofData hexutil.Bytes `json:"proof-data"`

	KeyReady bool `json:"key-ready,omitempty"`
	Key      byte `json:"key,omitempty"`
}

// readKeyboard returns the keyboard stream, without the bytes already consumed by state.
func readKeyboard(path string, state *fast.VMState) ([]byte, error) {
	if path == "" {
		if state.InputCount != 0 {
			return nil, fmt.Errorf("state consumed %d keyboard bytes but no keyboard input was given", state.InputCount)
		}
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keyboard input: %w", err)
	}
	if uint64(state.InputCount) > uint64(len(data)) {
		return nil, fmt.Errorf("state consumed %d keyboard bytes, input has only %d", state.InputCount, len(data))
	}
	return data[state.InputCount:], nil
}

func Run(ctx *cli.Context) error {
	if ctx.Bool(PProfCPUFlag.Name) {
		defer profile.Start(profile.NoShutdownHook, profile.ProfilePath("."), profile.CPUProfile).Stop()
	}

	state, err := jsonutil.LoadJSON[fast.VMState](ctx.Path(RunInputFlag.Name))
	if err != nil {
		return err
	}
	input, err := readKeyboard(ctx.Path(KeyboardFlag.Name), state)
	if err != nil {
		return err
	}

	l := commandLogger(ctx)
	var display io.Writer = ctx.App.Writer
	if ctx.Bool(RunLogOutputFlag.Name) {
		display = &LoggingWriter{Name: "display", Log: l}
	}

	matchers := make(map[string]StepMatcher)
	for _, f := range []*cli.StringFlag{RunStopAtFlag, RunProofAtFlag, RunSnapshotAtFlag, RunInfoAtFlag} {
		m, err := ParseStepMatcher(ctx.String(f.Name))
		if err != nil {
			return fmt.Errorf("invalid --%s: %w", f.Name, err)
		}
		matchers[f.Name] = m
	}
	stopAt := matchers[RunStopAtFlag.Name]
	proofAt := matchers[RunProofAtFlag.Name]
	snapshotAt := matchers[RunSnapshotAtFlag.Name]
	infoAt := matchers[RunInfoAtFlag.Name]

	port := fast.NewBufferedPort(input, display)
	us := fast.NewInstrumentedState(state, port, fast.Config{
		MaxSteps: ctx.Uint64(RunMaxStepsFlag.Name),
		Logger:   l,
	})
	proofFmt := ctx.String(RunProofFmtFlag.Name)
	snapshotFmt := ctx.String(RunSnapshotFmtFlag.Name)

	start := time.Now()
	startStep := state.Step

	var runErr error
	for state.Status == fast.StatusRunning {
		if state.Step%100 == 0 {
			if err := ctx.Context.Err(); err != nil {
				return err
			}
		}

		step := state.Step

		if infoAt(state) {
			delta := time.Since(start)
			l.Info("processing",
				"step", step,
				"pc", fast.HexU16(state.Registers.PC),
				"insn", fast.HexU16(state.Instr()),
				"ips", float64(step-startStep)/(float64(delta)/float64(time.Second)),
				"pages", state.Memory.PageCount(),
				"mem", state.Memory.Usage(),
			)
		}

		if stopAt(state) {
			break
		}

		if snapshotAt(state) {
			if err := jsonutil.WriteJSON(fmt.Sprintf(snapshotFmt, step), state, OutFilePerm); err != nil {
				return fmt.Errorf("failed to write state snapshot: %w", err)
			}
		}

		if proofAt(state) {
			preStateHash, err := state.EncodeWitness().StateHash()
			if err != nil {
				return fmt.Errorf("failed to hash prestate witness: %w", err)
			}
			witness, err := us.Step(true)
			if err != nil {
				runErr = err
				break
			}
			postStateHash, err := state.EncodeWitness().StateHash()
			if err != nil {
				return fmt.Errorf("failed to hash poststate witness: %w", err)
			}
			proof := &Proof{
				Step:      step,
				Pre:       preStateHash,
				Post:      postStateHash,
				StateData: hexutil.Bytes(witness.State),
				ProofData: witness.MemProof,
				KeyReady:  witness.KeyReady,
				Key:       witness.Key,
			}
			if err := jsonutil.WriteJSON(fmt.Sprintf(proofFmt, step), proof, OutFilePerm); err != nil {
				return fmt.Errorf("failed to write proof data: %w", err)
			}
		} else if _, err := us.Step(false); err != nil {
			runErr = err
			break
		}
	}
	if err := port.Err(); err != nil {
		return fmt.Errorf("failed to write display output: %w", err)
	}

	if err := jsonutil.WriteJSON(ctx.Path(RunOutputFlag.Name), state, OutFilePerm); err != nil {
		return fmt.Errorf("failed to write state output: %w", err)
	}
	if runErr != nil {
		return fmt.Errorf("machine %s: %w", state.Status, runErr)
	}
	l.Info("run finished",
		"status", state.Status,
		"steps", state.Step,
		"consumed", state.InputCount,
		"output", state.OutputCount)
	return nil
}

var RunCommand = &cli.Command{
	Name:        "run",
	Usage:       "Run the machine from a JSON state",
	Description: "Run the machine from a JSON state until it halts or faults. See flags to match when to output a step witness, a snapshot, or to stop early.",
	Action:      Run,
	Flags: []cli.Flag{
		RunInputFlag,
		RunOutputFlag,
		KeyboardFlag,
		RunMaxStepsFlag,
		RunProofAtFlag,
		RunProofFmtFlag,
		RunSnapshotAtFlag,
		RunSnapshotFmtFlag,
		RunStopAtFlag,
		RunInfoAtFlag,
		RunLogOutputFlag,
		PProfCPUFlag,
		VerboseFlag,
	},
}
