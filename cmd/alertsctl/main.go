package main

import "github.com/tidepool-org/glucose-alerts/cmd/alertsctl/command"

func main() {
	command.Execute()
}
