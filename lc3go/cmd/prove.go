package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/ethereum-optimism/optimism/op-service/jsonutil"
	"github.com/pkg/profile"
	"github.com/urfave/cli/v2"

	"github.com/lc3zk/lc3zk/lc3go/constraint"
	"github.com/lc3zk/lc3zk/lc3go/fast"
	"github.com/lc3zk/lc3zk/lc3go/prover"
)

func Setup(ctx *cli.Context) error {
	p, err := fast.LoadObjectFile(ctx.Path(ProgramFlag.Name))
	if err != nil {
		return err
	}
	bound := ctx.Uint64(StepBoundFlag.Name)
	start := time.Now()
	srs, err := prover.SetupForProgram(len(p.Image()), bound)
	if err != nil {
		return err
	}
	out := ctx.Path(SetupOutFlag.Name)
	if err := prover.WriteSRS(out, srs); err != nil {
		return err
	}
	commandLogger(ctx).Info("wrote reference string",
		"path", out,
		"size", len(srs.Pk.G1),
		"domain", constraint.DomainSize(bound, len(p.Image())),
		"elapsed", time.Since(start))
	return nil
}

var SetupCommand = &cli.Command{
	Name:        "setup",
	Usage:       "Generate a KZG reference string large enough for a program",
	Description: "Generate a KZG reference string large enough to prove runs of the program within the step bound. The secret is sampled locally and discarded, so the output is for testing only.",
	Action:      Setup,
	Flags: []cli.Flag{
		ProgramFlag,
		StepBoundFlag,
		SetupOutFlag,
		VerboseFlag,
	},
}

func Prove(ctx *cli.Context) error {
	if ctx.Bool(PProfCPUFlag.Name) {
		defer profile.Start(profile.NoShutdownHook, profile.ProfilePath("."), profile.CPUProfile).Stop()
	}
	l := commandLogger(ctx)

	p, err := fast.LoadObjectFile(ctx.Path(ProgramFlag.Name))
	if err != nil {
		return err
	}
	srs, err := prover.ReadSRS(ctx.Path(SRSFlag.Name))
	if err != nil {
		return err
	}
	var input []byte
	if path := ctx.Path(KeyboardFlag.Name); path != "" {
		if input, err = os.ReadFile(path); err != nil {
			return fmt.Errorf("failed to read keyboard input: %w", err)
		}
	}
	bound := ctx.Uint64(StepBoundFlag.Name)
	if bound == 0 || bound > constraint.MaxStepBound {
		return fmt.Errorf("%w: %d not in [1, %d]", constraint.ErrStepBound, bound, constraint.MaxStepBound)
	}

	out, tr, err := fast.RunProgram(ctx.Context, p, input, fast.Config{MaxSteps: bound, Logger: l})
	if err != nil {
		return err
	}
	if out.Fault != nil {
		return fmt.Errorf("no proof for a faulted run: %w", out.Fault)
	}
	pub, err := constraint.NewPublicInputs(p, out, input, bound)
	if err != nil {
		return err
	}
	l.Info("run halted", "steps", out.Steps, "consumed", out.InputConsumed, "output", len(out.Output))

	pk, _ := prover.NewKeys(srs, p)
	pr := prover.NewProver(pk, prover.Config{
		Debug:   ctx.Bool(ProveDebugFlag.Name),
		Workers: ctx.Int(ProveWorkersFlag.Name),
		Logger:  l,
	})
	proof, err := pr.Prove(ctx.Context, tr, pub)
	if err != nil {
		if f, ok := constraint.AsFailure(err); ok {
			l.Error("constraint failed", "handle", f.Handle, "row", f.Row, "step", f.Step)
		}
		return err
	}
	return jsonutil.WriteJSON(ctx.Path(ProveOutFlag.Name), &prover.Artifact{Public: pub, Proof: proof}, OutFilePerm)
}

var ProveCommand = &cli.Command{
	Name:        "prove",
	Usage:       "Run a program and prove the run",
	Description: "Run a program on the keyboard input and write the public claim together with a proof that the run halts within the step bound.",
	Action:      Prove,
	Flags: []cli.Flag{
		ProgramFlag,
		SRSFlag,
		KeyboardFlag,
		StepBoundFlag,
		ProveOutFlag,
		ProveDebugFlag,
		ProveWorkersFlag,
		PProfCPUFlag,
		VerboseFlag,
	},
}

func Verify(ctx *cli.Context) error {
	p, err := fast.LoadObjectFile(ctx.Path(ProgramFlag.Name))
	if err != nil {
		return err
	}
	srs, err := prover.ReadSRS(ctx.Path(SRSFlag.Name))
	if err != nil {
		return err
	}
	artifact, err := jsonutil.LoadJSON[prover.Artifact](ctx.Path(VerifyProofFlag.Name))
	if err != nil {
		return fmt.Errorf("%w: %w", prover.ErrMalformedProof, err)
	}
	if artifact.Public == nil || artifact.Proof == nil {
		return fmt.Errorf("%w: artifact lacks the claim or the proof", prover.ErrMalformedProof)
	}
	_, vk := prover.NewKeys(srs, p)
	if err := prover.Verify(vk, artifact.Public, artifact.Proof); err != nil {
		return err
	}
	commandLogger(ctx).Info("proof accepted",
		"bound", artifact.Public.StepBound,
		"consumed", artifact.Public.InputConsumed,
		"output", len(artifact.Public.Output))
	_, _ = fmt.Fprintln(ctx.App.Writer, "accepted")
	return nil
}

var VerifyCommand = &cli.Command{
	Name:        "verify",
	Usage:       "Verify a proof artifact against a program",
	Description: "Verify a proof artifact against a program. Exits with 0 on accept and 1 on reject.",
	Action:      Verify,
	Flags: []cli.Flag{
		ProgramFlag,
		SRSFlag,
		VerifyProofFlag,
		VerboseFlag,
	},
}
