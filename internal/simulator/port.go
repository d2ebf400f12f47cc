// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package simulator

import (
	"io"
	"sync"
	"time"
)

// PortName selects the simulator instead of a serial device.
const PortName = "simulator"

// Port streams a Source as CRLF-terminated lines, one epoch per interval,
// the way a serial receiver does. Writes are discarded.
type Port struct {
	r    *io.PipeReader
	w    *io.PipeWriter
	stop chan struct{}
	once sync.Once
}

// Open starts streaming src. The first epoch is available immediately.
func Open(src Source, interval time.Duration) *Port {
	r, w := io.Pipe()
	p := &Port{r: r, w: w, stop: make(chan struct{})}
	go p.run(src, interval)
	return p
}

func (p *Port) run(src Source, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		lines, err := src.Next()
		if err != nil {
			p.w.CloseWithError(err)
			return
		}
		for _, l := range lines {
			if _, err := io.WriteString(p.w, l+"\r\n"); err != nil {
				return
			}
		}
		select {
		case <-p.stop:
			return
		case <-ticker.C:
		}
	}
}

func (p *Port) Read(b []byte) (int, error) {
	return p.r.Read(b)
}

func (p *Port) Write(b []byte) (int, error) {
	return len(b), nil
}

// Close stops the stream; pending and future reads return io.EOF.
func (p *Port) Close() error {
	p.once.Do(func() {
		close(p.stop)
		p.w.Close()
	})
	return nil
}
