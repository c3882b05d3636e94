package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/go-sentiment/internal/doctor"
)

func newDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Preflight checks for dataset, artifact, and configuration",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			res := doctor.Run(os.Stdout, cfg)
			if res.Failed() {
				return fmt.Errorf("%d preflight check(s) failed", len(res.Failures()))
			}

			return nil
		},
	}

	return cmd
}
