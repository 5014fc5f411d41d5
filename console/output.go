package console

import (
	"io"
	"sync"
)

// Output serialises writes from the command loop and from the network
// goroutines. The target is swapped to the readline writer while the
// console runs so asynchronous notices do not tear the prompt.
type Output struct {
	mu     sync.Mutex
	target io.Writer
}

func NewOutput(target io.Writer) *Output {
	return &Output{target: target}
}

func (o *Output) Write(p []byte) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.target.Write(p)
}

// SetTarget redirects subsequent writes and returns the previous target.
func (o *Output) SetTarget(w io.Writer) io.Writer {
	o.mu.Lock()
	defer o.mu.Unlock()

	prev := o.target
	o.target = w
	return prev
}
