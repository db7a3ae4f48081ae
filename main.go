package main

import "github.com/tidepool-org/glucose-alerts/api"

func main() {
	api.MainLoop()
}
