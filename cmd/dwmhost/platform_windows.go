//go:build windows

package main

import (
	"dwmhost/process"
	"dwmhost/process_windows"
)

func openTarget(pid process.ProcessID) (process.Process, error) {
	return process_windows.NewWithPID(pid)
}
