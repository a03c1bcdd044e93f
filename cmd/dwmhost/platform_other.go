//go:build !windows

package main

import (
	"errors"

	"dwmhost/process"
)

func openTarget(process.ProcessID) (process.Process, error) {
	return nil, errors.New("probing target memory requires Windows")
}
