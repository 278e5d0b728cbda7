package logic

import (
	"context"
	"errors"
)

var errNoEcho = errors.New("no echo")

// reading is one scripted probe result.
type reading struct {
	cm  int
	err error
}

// scriptProbe returns scripted readings per pin, repeating the last one.
type scriptProbe struct {
	readings map[int][]reading
	index    map[int]int
	calls    int
}

func newScriptProbe() *scriptProbe {
	return &scriptProbe{readings: map[int][]reading{}, index: map[int]int{}}
}

func (p *scriptProbe) set(pin int, rs ...reading) {
	p.readings[pin] = rs
	p.index[pin] = 0
}

func (p *scriptProbe) Measure(pin int) (int, error) {
	p.calls++
	rs := p.readings[pin]
	if len(rs) == 0 {
		return 400, nil
	}
	i := p.index[pin]
	if i < len(rs)-1 {
		p.index[pin] = i + 1
	}
	return rs[i].cm, rs[i].err
}

func cm(v int) reading { return reading{cm: v} }

// recordingChannel acks every update after a fixed number of attempts.
type recordingChannel struct {
	updates  []Update
	inbound  []int
	attempts int
	ignored  int
	clock    Clock
}

func (c *recordingChannel) Notify(ctx context.Context, u Update) Delivery {
	c.updates = append(c.updates, u)
	n := c.attempts
	if n == 0 {
		n = 1
	}
	return Delivery{Update: u, Attempts: n, Delivered: true}
}

func (c *recordingChannel) DrainIncoming(r Reserver) []Command {
	var cmds []Command
	for _, space := range c.inbound {
		cmd := Command{Space: space, At: c.clock.Now()}
		cmd.Applied = r.Reserve(space, cmd.At) == nil
		cmds = append(cmds, cmd)
	}
	c.inbound = nil
	return cmds
}

func (c *recordingChannel) Ignored() int { return c.ignored }

// lampRecorder records indicator writes.
type lampRecorder struct {
	writes [][2]bool
	err    error
}

func (l *lampRecorder) Write(yellow, green bool) error {
	if l.err != nil {
		return l.err
	}
	l.writes = append(l.writes, [2]bool{yellow, green})
	return nil
}

func (l *lampRecorder) last() [2]bool {
	if len(l.writes) == 0 {
		return [2]bool{}
	}
	return l.writes[len(l.writes)-1]
}
