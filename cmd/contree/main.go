package main

import (
	"fmt"
	"os"

	"github.com/temirov/contree/internal/cli"
	"github.com/temirov/contree/internal/utils"
)

// main is the entry point for the contree command.
func main() {
	loggerInstance, logLevel, loggerInitializationError := utils.NewApplicationLogger()
	if loggerInitializationError != nil {
		panic(fmt.Errorf(utils.LoggerInitializationFailedMessageFormat, loggerInitializationError))
	}
	applicationExecutionError := cli.Execute(loggerInstance, logLevel)
	if applicationExecutionError != nil {
		loggerInstance.Error(utils.ApplicationExecutionFailedMessage + ": " + applicationExecutionError.Error())
	}
	_ = loggerInstance.Sync()
	if applicationExecutionError != nil {
		os.Exit(1)
	}
}
