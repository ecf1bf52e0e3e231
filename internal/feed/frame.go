package feed

// Frame kinds carried on a session stream. The same vocabulary is used on
// the wire (SSE and WebSocket) and in the replay buffer.
const (
	TypeOutput = "output"
	TypeStatus = "status"
	TypePing   = "ping"
	TypeExit   = "exit"
	TypeError  = "error"
	TypeReplay = "replay"
)

// Frame is one event on a session's output stream: a chunk of process
// output, a liveness snapshot, a keepalive, or a terminal exit/error marker.
// Frames are immutable once appended to a Feed.
//
// Exactly one of the optional fields is set, selected by Type. Code and
// Alive are pointers so that zero values (exit code 0, alive=false) survive
// JSON encoding.
type Frame struct {
	Type   string  `json:"type"`
	Text   string  `json:"text,omitempty"`
	Alive  *bool   `json:"alive,omitempty"`
	Code   *int    `json:"code,omitempty"`
	Frames []Frame `json:"frames,omitempty"`
}

// Output wraps one chunk of process output. Text is raw and may contain
// control sequences.
func Output(text string) Frame {
	return Frame{Type: TypeOutput, Text: text}
}

// Status reports session liveness, sent once when a viewer attaches.
func Status(alive bool) Frame {
	return Frame{Type: TypeStatus, Alive: &alive}
}

// Ping is a keepalive with no semantic payload.
func Ping() Frame {
	return Frame{Type: TypePing}
}

// Exit is the terminal frame for a process that exited with a code.
// No frames follow it on the stream.
func Exit(code int) Frame {
	return Frame{Type: TypeExit, Code: &code}
}

// Error is the terminal frame for an OS-level process failure after spawn.
func Error(text string) Frame {
	return Frame{Type: TypeError, Text: text}
}

// Replay bundles the retained buffer into a single frame, delivered to a
// newly attached viewer before its first live frame.
func Replay(frames []Frame) Frame {
	return Frame{Type: TypeReplay, Frames: frames}
}

// Terminal reports whether no further frames can follow f on its stream.
func (f Frame) Terminal() bool {
	return f.Type == TypeExit || f.Type == TypeError
}
