package command

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/tidepool-org/glucose-alerts/settings"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Alert settings",
	Long:  "The settings command is used to inspect and change the alert settings of patients",
}

var settingsGetCmd = &cobra.Command{
	Use:   "get {userId}",
	Short: "Get the alert settings of a patient",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return Run(func(service settings.Service) error {
			return getSettings(service, args[0])
		})
	},
}

var settingsUpdateCmd = &cobra.Command{
	Use:   "update {userId}...",
	Short: "Update the alert settings of one or more patients",
	Long:  "The update command applies the same partial update to every patient. The update is rejected for all patients if it is invalid for any of them.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		update := updateFromFlags(cmd.Flags())
		if update.IsEmpty() {
			return fmt.Errorf("at least one setting must be provided")
		}
		return Run(func(service settings.Service) error {
			return updateSettings(service, args, update)
		})
	},
}

var updateFlags struct {
	alertsEnabled        bool
	severeThreshold      float64
	hypoThreshold        float64
	hyperThreshold       float64
	persistentThreshold  float64
	windowHours          int
	minReadings          int
	email                bool
	quietHoursEnabled    bool
	quietHoursStart      string
	quietHoursEnd        string
	criticalIgnoresQuiet bool
	frequency            string
}

func getSettings(service settings.Service, userId string) error {
	result, err := service.Get(context.TODO(), userId)
	if err != nil {
		return err
	}
	return printJSON(result)
}

func updateSettings(service settings.Service, userIds []string, update settings.Update) error {
	if len(userIds) == 1 {
		result, err := service.Update(context.TODO(), userIds[0], update)
		if err != nil {
			return err
		}
		return printJSON(result)
	}

	result, err := service.UpdateMany(context.TODO(), userIds, update)
	if err != nil {
		return err
	}
	fmt.Printf("Updated %v patients\n", len(result))
	return nil
}

func updateFromFlags(flags *pflag.FlagSet) settings.Update {
	update := settings.Update{}
	if flags.Changed("alerts-enabled") {
		update.AlertsEnabled = &updateFlags.alertsEnabled
	}
	if flags.Changed("severe-threshold") {
		update.SevereHypoglycemiaThreshold = &updateFlags.severeThreshold
	}
	if flags.Changed("hypo-threshold") {
		update.HypoglycemiaThreshold = &updateFlags.hypoThreshold
	}
	if flags.Changed("hyper-threshold") {
		update.HyperglycemiaThreshold = &updateFlags.hyperThreshold
	}
	if flags.Changed("persistent-threshold") {
		update.PersistentHyperglycemiaThreshold = &updateFlags.persistentThreshold
	}
	if flags.Changed("window-hours") {
		update.PersistentHyperglycemiaWindowHours = &updateFlags.windowHours
	}
	if flags.Changed("min-readings") {
		update.PersistentHyperglycemiaMinReadings = &updateFlags.minReadings
	}
	if flags.Changed("email") {
		update.NotificationChannels = &settings.NotificationChannelsUpdate{Email: &updateFlags.email}
	}
	if flags.Changed("quiet-hours-enabled") {
		update.QuietHoursEnabled = &updateFlags.quietHoursEnabled
	}
	if flags.Changed("quiet-hours-start") {
		update.QuietHoursStart = &updateFlags.quietHoursStart
	}
	if flags.Changed("quiet-hours-end") {
		update.QuietHoursEnd = &updateFlags.quietHoursEnd
	}
	if flags.Changed("critical-ignores-quiet-hours") {
		update.CriticalAlertsIgnoreQuietHours = &updateFlags.criticalIgnoresQuiet
	}
	if flags.Changed("frequency") {
		frequency := settings.NotificationFrequency(updateFlags.frequency)
		update.NotificationFrequency = &frequency
	}
	return update
}

func init() {
	flags := settingsUpdateCmd.Flags()
	flags.BoolVar(&updateFlags.alertsEnabled, "alerts-enabled", true, "Enable or disable all alerts")
	flags.Float64Var(&updateFlags.severeThreshold, "severe-threshold", settings.DefaultSevereHypoglycemiaThreshold, "Severe hypoglycemia threshold in mg/dL")
	flags.Float64Var(&updateFlags.hypoThreshold, "hypo-threshold", settings.DefaultHypoglycemiaThreshold, "Hypoglycemia threshold in mg/dL")
	flags.Float64Var(&updateFlags.hyperThreshold, "hyper-threshold", settings.DefaultHyperglycemiaThreshold, "Hyperglycemia threshold in mg/dL")
	flags.Float64Var(&updateFlags.persistentThreshold, "persistent-threshold", settings.DefaultPersistentHyperglycemiaThreshold, "Persistent hyperglycemia threshold in mg/dL")
	flags.IntVar(&updateFlags.windowHours, "window-hours", settings.DefaultPersistentHyperglycemiaWindowHours, "Persistent hyperglycemia window in hours")
	flags.IntVar(&updateFlags.minReadings, "min-readings", settings.DefaultPersistentHyperglycemiaMinReadings, "Readings required for persistent hyperglycemia")
	flags.BoolVar(&updateFlags.email, "email", false, "Enable or disable email notifications")
	flags.BoolVar(&updateFlags.quietHoursEnabled, "quiet-hours-enabled", false, "Enable or disable quiet hours")
	flags.StringVar(&updateFlags.quietHoursStart, "quiet-hours-start", "", "Quiet hours start (HH:MM)")
	flags.StringVar(&updateFlags.quietHoursEnd, "quiet-hours-end", "", "Quiet hours end (HH:MM)")
	flags.BoolVar(&updateFlags.criticalIgnoresQuiet, "critical-ignores-quiet-hours", true, "Notify critical alerts during quiet hours")
	flags.StringVar(&updateFlags.frequency, "frequency", string(settings.NotificationFrequencyImmediate), "Notification frequency (IMMEDIATE, DAILY, WEEKLY)")

	settingsCmd.AddCommand(settingsGetCmd)
	settingsCmd.AddCommand(settingsUpdateCmd)
	rootCmd.AddCommand(settingsCmd)
}
