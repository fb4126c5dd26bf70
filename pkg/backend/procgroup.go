package backend

import (
	"fmt"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// processGroupCleanup kills the whole process tree of a command backend on cancellation.
type processGroupCleanup struct {
	cmd  *exec.Cmd
	done chan struct{}
	once sync.Once
	err  error
}

func setupProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// newProcessGroupCleanup watches cancelCh for a started command. Wait must be called.
func newProcessGroupCleanup(cmd *exec.Cmd, cancelCh <-chan struct{}) *processGroupCleanup {
	pg := &processGroupCleanup{cmd: cmd, done: make(chan struct{})}
	go func() {
		select {
		case <-cancelCh:
			pg.kill()
		case <-pg.done:
		}
	}()
	return pg
}

// kill sends SIGTERM to the group, then SIGKILL after a short grace period.
func (pg *processGroupCleanup) kill() {
	if pg.cmd.Process == nil {
		return
	}
	pgid := -pg.cmd.Process.Pid
	if err := syscall.Kill(pgid, syscall.SIGTERM); err != nil {
		return // ESRCH, already gone
	}
	time.Sleep(100 * time.Millisecond)
	_ = syscall.Kill(pgid, syscall.SIGKILL)
}

// Wait waits for the command, safe to call more than once.
func (pg *processGroupCleanup) Wait() error {
	pg.once.Do(func() {
		pg.err = pg.cmd.Wait()
		close(pg.done)
		if pg.err != nil {
			pg.err = fmt.Errorf("command wait: %w", pg.err)
		}
	})
	return pg.err
}
