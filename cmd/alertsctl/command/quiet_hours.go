package command

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tidepool-org/glucose-alerts/quiethours"
)

var quietHoursFlags struct {
	timezone string
	at       string
}

var quietHoursCmd = &cobra.Command{
	Use:   "quiet-hours {start} {end}",
	Short: "Check whether a time falls into quiet hours",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		now := time.Now()
		if quietHoursFlags.at != "" {
			at, err := time.Parse(time.RFC3339, quietHoursFlags.at)
			if err != nil {
				return fmt.Errorf("invalid time %q: %w", quietHoursFlags.at, err)
			}
			now = at
		}

		return Run(func(evaluator *quiethours.Evaluator) {
			quiet := evaluator.IsQuiet(args[0], args[1], quietHoursFlags.timezone, now)
			fmt.Printf("%s in %s: quiet=%v\n", now.Format(time.RFC3339), quietHoursFlags.timezone, quiet)
		})
	},
}

func init() {
	quietHoursCmd.Flags().StringVar(&quietHoursFlags.timezone, "timezone", quiethours.FallbackTimezone, "IANA timezone of the patient")
	quietHoursCmd.Flags().StringVar(&quietHoursFlags.at, "at", "", "Time to evaluate in RFC3339, defaults to now")
	rootCmd.AddCommand(quietHoursCmd)
}
