package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sts-go/sts/internal/tracelog"
	"github.com/sts-go/sts/internal/trial"
)

func newFuzzCommand() *cobra.Command {
	var (
		outPath     string
		waitSeconds float64
		seed        int64
	)
	cmd := &cobra.Command{
		Use:   "fuzz",
		Short: "Fuzz the ring in an isolated trial child until an invariant violation is found or steps run out",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			params := cfg.Fuzzer
			if cmd.Flags().Changed("seed") {
				params.Seed = seed
			}

			driver := trial.NewDriver(os.Args[0], nil, loggerFor(cmd))
			resp, err := driver.Run(cmd.Context(), trial.Request{
				Kind:                   trial.KindFuzz,
				SwitchInitSleepSeconds: waitSeconds,
				FuzzerParams:           params,
			})
			if err != nil {
				return err
			}
			if resp.Fuzz == nil {
				return fmt.Errorf("fuzz: child returned no fuzz result")
			}

			if outPath != "" {
				if err := tracelog.WriteFile(outPath, resp.Fuzz.Events); err != nil {
					return err
				}
			}

			fmt.Printf("ran %d rounds, %d events injected, %d violations\n",
				resp.Fuzz.Rounds, len(resp.Fuzz.Events), len(resp.Fuzz.Violations))
			for _, fp := range resp.Fuzz.Violations {
				fmt.Printf("violation: %v\n", fp.Payload)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&outPath, "out", "", "write the injected-event trace to this NDJSON file")
	cmd.Flags().Float64Var(&waitSeconds, "switch-init-sleep", 0, "seconds to wait for switch-controller connections before the first round")
	cmd.Flags().Int64Var(&seed, "seed", 0, "override the fuzzer's PRNG seed")
	return cmd
}
