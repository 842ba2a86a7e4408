// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"os"
	"time"
)

// FileChecker checks that the change list exists and is a readable file.
type FileChecker struct {
	name string
	path string
}

// NewFileChecker creates a checker for file existence
func NewFileChecker(name, path string) *FileChecker {
	return &FileChecker{name: name, path: path}
}

func (c *FileChecker) Name() string { return c.name }

// Check reports a missing file as unhealthy and an empty one as degraded.
func (c *FileChecker) Check(_ context.Context) CheckResult {
	info, err := os.Stat(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return CheckResult{Status: StatusUnhealthy, Error: "file not found", Message: c.path}
		}
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}
	if info.IsDir() {
		return CheckResult{Status: StatusUnhealthy, Error: "expected file, got directory"}
	}
	if info.Size() == 0 {
		return CheckResult{Status: StatusDegraded, Message: "file is empty"}
	}
	return CheckResult{Status: StatusHealthy, Message: "file exists and readable"}
}

// ConnectionChecker maps the gateway supervisor state onto a health status.
type ConnectionChecker struct {
	state func() string
}

// NewConnectionChecker wraps a state accessor such as Supervisor.State.
func NewConnectionChecker(state func() string) *ConnectionChecker {
	return &ConnectionChecker{state: state}
}

func (c *ConnectionChecker) Name() string { return "gateway" }

func (c *ConnectionChecker) Check(_ context.Context) CheckResult {
	switch st := c.state(); st {
	case "connected":
		return CheckResult{Status: StatusHealthy, Message: st}
	case "reconnecting":
		return CheckResult{Status: StatusDegraded, Message: st}
	default:
		return CheckResult{Status: StatusUnhealthy, Message: st}
	}
}

// LastRun is what LastRunChecker needs to know about the latest run.
type LastRun struct {
	FinishedAt time.Time
	Err        error
}

// LastRunChecker reports on the most recent reconciliation run.
type LastRunChecker struct {
	lastRun func() (LastRun, bool)
	maxAge  time.Duration
	now     func() time.Time
}

// NewLastRunChecker creates a checker for the last reconciliation run. A run
// older than maxAge means a scheduled fire was missed.
func NewLastRunChecker(lastRun func() (LastRun, bool), maxAge time.Duration) *LastRunChecker {
	return &LastRunChecker{lastRun: lastRun, maxAge: maxAge, now: time.Now}
}

func (c *LastRunChecker) Name() string { return "last_reconcile_run" }

// Check never reports unhealthy: an aborted run is retried at the next fire
// and must not take the process out of rotation.
func (c *LastRunChecker) Check(_ context.Context) CheckResult {
	run, ok := c.lastRun()
	if !ok {
		return CheckResult{Status: StatusHealthy, Message: "no run yet"}
	}
	if run.Err != nil {
		return CheckResult{Status: StatusDegraded, Error: run.Err.Error(), Message: "last run aborted"}
	}
	if c.maxAge > 0 && c.now().Sub(run.FinishedAt) > c.maxAge {
		return CheckResult{Status: StatusDegraded, Message: "last run is older than expected"}
	}
	return CheckResult{Status: StatusHealthy, Message: "last run completed"}
}
