package main

import (
	"errors"
	"fmt"
	"os"
)

// exitRejected is the exit status of a timetable that fails normalization.
const exitRejected = 2

func main() {
	cmd := newRootCommand(os.Stdout)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		var rejected *rejectedError
		if errors.As(err, &rejected) {
			os.Exit(exitRejected)
		}
		os.Exit(1)
	}
}
