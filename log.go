package main

import (
	"os"

	"github.com/charmbracelet/log"
)

func setupLog() (func() error, error) {
	// Log to file, if set
	if logFile := os.Getenv("CHATVOICE_LOGFILE"); logFile != "" {
		f, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) //nolint:gosec
		if err != nil {
			return nil, err
		}
		log.SetOutput(f)
		log.SetLevel(log.DebugLevel)
		log.SetReportTimestamp(true)
		return f.Close, nil
	}
	log.SetOutput(os.Stderr)
	log.SetLevel(log.WarnLevel)
	return func() error { return nil }, nil
}
