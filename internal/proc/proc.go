package proc

import (
	"errors"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"

	"github.com/harborlabs/skiff/internal/feed"
)

// DefaultKillGrace is how long Terminate waits after SIGTERM before
// escalating to SIGKILL.
const DefaultKillGrace = 2 * time.Second

var (
	ErrProcDead     = errors.New("process has exited")
	ErrEmptyCommand = errors.New("empty command")
	ErrNoPTY        = errors.New("process has no pty")
)

// Spec holds the immutable launch parameters for one child process.
type Spec struct {
	// Command is the argv; Command[0] is the binary.
	Command []string
	// Dir is the working directory; empty inherits the parent's.
	Dir string
	// Env entries are appended to the parent environment.
	Env []string
	// PTY launches the process inside a pseudo-terminal so interactive
	// programs get real echo, line editing and ANSI semantics. Without it
	// stdout and stderr are captured through plain pipes.
	PTY  bool
	Cols uint16
	Rows uint16
	// KillGrace overrides DefaultKillGrace when positive.
	KillGrace time.Duration
}

// Proc owns one child OS process and pumps its combined output into a
// feed as output frames. When the process ends, for any reason, exactly
// one terminal frame (exit or error) is appended and the feed is closed.
type Proc struct {
	spec Spec
	cmd  *exec.Cmd
	feed *feed.Feed

	ptmx  *os.File       // pty mode
	stdin io.WriteCloser // pipe mode

	killGrace time.Duration
	readDone  chan struct{}
	done      chan struct{}

	mu         sync.Mutex
	dead       bool
	terminated bool
}

// feedWriter adapts a feed to io.Writer so exec.Cmd's copy goroutines
// deliver pipe output as frames. cmd.Wait returns only after these
// writers are done, which keeps the terminal frame last.
type feedWriter struct {
	feed *feed.Feed
}

func (w feedWriter) Write(p []byte) (int, error) {
	if len(p) > 0 {
		w.feed.Append(feed.Output(string(p)))
	}
	return len(p), nil
}

// Start spawns the process described by spec and wires its output to f.
// Spawn failure (missing binary, permission denied, bad working
// directory) is returned synchronously; no frame is appended and no
// goroutine is left behind.
func Start(spec Spec, f *feed.Feed) (*Proc, error) {
	if len(spec.Command) == 0 {
		return nil, ErrEmptyCommand
	}

	cmd := exec.Command(spec.Command[0], spec.Command[1:]...)
	cmd.Dir = spec.Dir
	cmd.Env = append(os.Environ(), spec.Env...)

	p := &Proc{
		spec:      spec,
		cmd:       cmd,
		feed:      f,
		killGrace: spec.KillGrace,
		readDone:  make(chan struct{}),
		done:      make(chan struct{}),
	}
	if p.killGrace <= 0 {
		p.killGrace = DefaultKillGrace
	}

	if spec.PTY {
		cmd.Env = append(cmd.Env, "TERM=xterm-256color")
		cols, rows := spec.Cols, spec.Rows
		if cols == 0 {
			cols = 80
		}
		if rows == 0 {
			rows = 24
		}
		ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Cols: cols, Rows: rows})
		if err != nil {
			return nil, err
		}
		p.ptmx = ptmx
		go p.readLoop(ptmx)
	} else {
		stdin, err := cmd.StdinPipe()
		if err != nil {
			return nil, err
		}
		cmd.Stdout = feedWriter{f}
		cmd.Stderr = feedWriter{f}
		if err := cmd.Start(); err != nil {
			stdin.Close()
			return nil, err
		}
		p.stdin = stdin
		close(p.readDone)
	}

	go p.wait()
	return p, nil
}

// readLoop pumps PTY output into the feed until the master errors out,
// which happens once the child exits and releases the slave side.
func (p *Proc) readLoop(r io.Reader) {
	defer close(p.readDone)

	buf := make([]byte, 32*1024)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			p.feed.Append(feed.Output(string(buf[:n])))
		}
		if err != nil {
			return
		}
	}
}

// wait reaps the process, appends the single terminal frame after all
// output has been delivered, and closes the feed.
func (p *Proc) wait() {
	err := p.cmd.Wait()
	<-p.readDone

	p.mu.Lock()
	p.dead = true
	if p.ptmx != nil {
		p.ptmx.Close()
	}
	if p.stdin != nil {
		p.stdin.Close()
	}
	p.mu.Unlock()

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		p.feed.Append(feed.Exit(0))
	case errors.As(err, &exitErr):
		p.feed.Append(feed.Exit(exitErr.ExitCode()))
	default:
		p.feed.Append(feed.Error(err.Error()))
	}
	p.feed.Close()
	close(p.done)
}

// Write forwards bytes to the process input. Returns ErrProcDead once the
// process has exited.
func (p *Proc) Write(data []byte) error {
	p.mu.Lock()
	if p.dead {
		p.mu.Unlock()
		return ErrProcDead
	}
	ptmx, stdin := p.ptmx, p.stdin
	p.mu.Unlock()

	var err error
	if ptmx != nil {
		_, err = ptmx.Write(data)
	} else {
		_, err = stdin.Write(data)
	}
	if err != nil && !p.Alive() {
		// The process died between the liveness check and the write.
		return ErrProcDead
	}
	return err
}

// Terminate asks the process to exit: SIGTERM now, SIGKILL after the
// grace period if it is still running. Best effort and never blocking;
// the exit watcher, not Terminate, marks the process dead. Calling it
// again, or on an already-dead process, is a no-op.
func (p *Proc) Terminate() {
	p.mu.Lock()
	if p.dead || p.terminated {
		p.mu.Unlock()
		return
	}
	p.terminated = true
	p.mu.Unlock()

	osProc := p.cmd.Process
	if osProc == nil {
		return
	}
	osProc.Signal(syscall.SIGTERM)

	grace := p.killGrace
	go func() {
		select {
		case <-p.done:
		case <-time.After(grace):
			osProc.Kill()
		}
	}()
}

// Resize changes the PTY window size. Pipe-mode processes have no
// window to resize.
func (p *Proc) Resize(cols, rows uint16) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.dead {
		return ErrProcDead
	}
	if p.ptmx == nil {
		return ErrNoPTY
	}
	return pty.Setsize(p.ptmx, &pty.Winsize{Cols: cols, Rows: rows})
}

// Alive reports whether the process is still running.
func (p *Proc) Alive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.dead
}

// Done closes when the process has exited and its terminal frame has
// been appended.
func (p *Proc) Done() <-chan struct{} {
	return p.done
}

// PID returns the child's process id, or 0 before the process started.
func (p *Proc) PID() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// Interactive reports whether the process runs inside a PTY.
func (p *Proc) Interactive() bool {
	return p.spec.PTY
}
