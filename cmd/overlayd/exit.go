package main

import (
	"fmt"
	"os"
)

var osExit = os.Exit

type exitSentinel int

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	osExit(1)
}
