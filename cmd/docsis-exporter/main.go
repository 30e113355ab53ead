package main

import (
	"docsis-exporter/cmd/docsis-exporter/commands"
	"docsis-exporter/lib/serviceutil"
)

func main() {
	commands.ExecuteContext(serviceutil.SignalContext())
}
