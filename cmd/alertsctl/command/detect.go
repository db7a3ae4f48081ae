package command

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/tidepool-org/glucose-alerts/alerts"
)

var detectFlags struct {
	readingId string
	entryId   string
}

var detectCmd = &cobra.Command{
	Use:   "detect {userId} {value}",
	Short: "Run alert detection for a glucose value",
	Long:  "The detect command evaluates a glucose value in mg/dL against the settings of the patient and stores the resulting alert",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		value, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("invalid glucose value %q: %w", args[1], err)
		}

		sample := alerts.Sample{
			UserId: args[0],
			Value:  value,
			Time:   time.Now(),
		}
		if cmd.Flags().Changed("reading-id") {
			sample.ReadingId = &detectFlags.readingId
		}
		if cmd.Flags().Changed("entry-id") {
			sample.EntryId = &detectFlags.entryId
		}

		return Run(func(detector alerts.Detector) error {
			return detect(detector, sample)
		})
	},
}

func detect(detector alerts.Detector, sample alerts.Sample) error {
	alert, err := detector.Detect(context.TODO(), sample)
	if err != nil {
		return err
	}
	if alert == nil {
		fmt.Println("No alert")
		return nil
	}
	return printJSON(alert)
}

func init() {
	detectCmd.Flags().StringVar(&detectFlags.readingId, "reading-id", "", "Id of the originating glucose reading")
	detectCmd.Flags().StringVar(&detectFlags.entryId, "entry-id", "", "Id of the originating CGM entry")
	rootCmd.AddCommand(detectCmd)
}
