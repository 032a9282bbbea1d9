// util/prof.go
// Copyright(c) 2025 gl3d contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package util

import (
	"errors"
	"fmt"
	"os"
	"runtime/pprof"
)

// Profiler writes a CPU profile for the time between StartProfiling and
// Stop and a heap profile at Stop. Either path may be empty.
type Profiler struct {
	cpu, mem *os.File
}

func StartProfiling(cpuPath, memPath string) (*Profiler, error) {
	p := &Profiler{}

	var err error
	if cpuPath != "" {
		if p.cpu, err = os.Create(cpuPath); err != nil {
			return nil, fmt.Errorf("%s: unable to create CPU profile: %w", cpuPath, err)
		}
		if err = pprof.StartCPUProfile(p.cpu); err != nil {
			p.cpu.Close()
			return nil, fmt.Errorf("unable to start CPU profile: %w", err)
		}
	}
	if memPath != "" {
		if p.mem, err = os.Create(memPath); err != nil {
			p.Stop()
			return nil, fmt.Errorf("%s: unable to create heap profile: %w", memPath, err)
		}
	}
	return p, nil
}

// Stop finishes both profiles; it may be called more than once.
func (p *Profiler) Stop() error {
	var errs []error
	if p.cpu != nil {
		pprof.StopCPUProfile()
		errs = append(errs, p.cpu.Close())
		p.cpu = nil
	}
	if p.mem != nil {
		errs = append(errs, pprof.WriteHeapProfile(p.mem), p.mem.Close())
		p.mem = nil
	}
	return errors.Join(errs...)
}
