// Copyright (c) 2018, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

// Package internal holds small helpers shared by the tests of several
// packages.
package internal

import (
	"bytes"
	"sync"
)

// ConcBuffer wraps a [bytes.Buffer] in a mutex so that concurrent
// writes to it don't upset the race detector. Background pipelines
// make an interpreter's output writes concurrent.
type ConcBuffer struct {
	buf bytes.Buffer
	sync.Mutex
}

func (c *ConcBuffer) Write(p []byte) (int, error) {
	c.Lock()
	defer c.Unlock()
	return c.buf.Write(p)
}

func (c *ConcBuffer) WriteString(s string) (int, error) {
	c.Lock()
	defer c.Unlock()
	return c.buf.WriteString(s)
}

func (c *ConcBuffer) String() string {
	c.Lock()
	defer c.Unlock()
	return c.buf.String()
}

func (c *ConcBuffer) Reset() {
	c.Lock()
	defer c.Unlock()
	c.buf.Reset()
}
