package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sts-go/sts/internal/errs"
	"github.com/sts-go/sts/internal/event"
	"github.com/sts-go/sts/internal/tracelog"
	"github.com/sts-go/sts/internal/trial"
)

func newRunTrialCommand() *cobra.Command {
	var (
		tracePath      string
		violationIndex int
		waitSeconds    float64
	)
	cmd := &cobra.Command{
		Use:   "run-trial",
		Short: "Replay one recorded trace in an isolated trial child and report whether it reproduces",
		RunE: func(cmd *cobra.Command, args []string) error {
			events, err := tracelog.ReadFile(tracePath)
			if err != nil {
				return err
			}
			dag := event.NewDAG(events)
			signature, err := resolveSignature(dag, violationIndex)
			if err != nil {
				return err
			}

			driver := trial.NewDriver(os.Args[0], nil, loggerFor(cmd))
			resp, err := driver.Run(cmd.Context(), trial.Request{
				Kind:                   trial.KindReplay,
				Trace:                  events,
				SwitchInitSleepSeconds: waitSeconds,
				BugSignature:           signature,
			})
			if err != nil {
				return err
			}
			if resp.Replay == nil {
				return fmt.Errorf("run-trial: child returned no replay result")
			}

			for _, fp := range resp.Replay.Violations {
				fmt.Printf("violation: %v\n", fp.Payload)
				if fp.Equal(signature) {
					fmt.Println("reproduced")
					return nil
				}
			}
			return errs.New("run-trial", errs.KindBugNotReproducible, "signature did not reproduce")
		},
	}
	cmd.Flags().StringVar(&tracePath, "trace", "", "path to the NDJSON trace log to replay")
	cmd.Flags().IntVar(&violationIndex, "violation-index", 0, "1-based index of the target fingerprint, when the final InvariantViolation carries more than one; omit to be prompted interactively")
	cmd.Flags().Float64Var(&waitSeconds, "switch-init-sleep", 0, "seconds to wait for switch-controller connections before the first event")
	_ = cmd.MarkFlagRequired("trace")
	return cmd
}
