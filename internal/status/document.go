package status

import (
	"fmt"
	"strings"
	"sync"

	"github.com/bytedance/sonic"
)

const (
	// ServiceName is published in every status document.
	ServiceName = "AutoConnect"
	// ServiceVersion is the wire protocol version published in every status document.
	ServiceVersion = "v1.0.0"

	// CommandStop tags the final document of a run and requests shutdown when received.
	CommandStop = "Stop"
)

// Result describes one adapter with at least one confirmed device.
// AddressList and CameraNameList are index aligned.
type Result struct {
	Name           string   `json:"Name"`
	Index          uint32   `json:"Index"`
	Description    string   `json:"Description"`
	AddressList    []string `json:"AddressList"`
	CameraNameList []string `json:"CameraNameList"`
}

// Document is the snapshot published to a controlling process.
type Document struct {
	Name    string   `json:"Name"`
	Version string   `json:"Version"`
	Log     []string `json:"Log"`
	Result  []Result `json:"Result,omitempty"`
	Command string   `json:"Command,omitempty"`
}

// NewDocument returns a document carrying the service identity.
func NewDocument(log []string, results []Result) *Document {
	if log == nil {
		log = []string{}
	}
	return &Document{
		Name:    ServiceName,
		Version: ServiceVersion,
		Log:     log,
		Result:  results,
	}
}

// Marshal encodes the document as JSON.
func (d *Document) Marshal() ([]byte, error) {
	data, err := sonic.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to encode status document: %w", err)
	}
	return data, nil
}

// MarshalLimit encodes the document so that it fits in limit bytes. When the
// full document is too large the oldest log lines are left out of the
// encoding; the receiver's Log field is not modified.
func (d *Document) MarshalLimit(limit int) ([]byte, error) {
	data, err := d.Marshal()
	if err != nil || len(data) <= limit {
		return data, err
	}

	trimmed := *d
	lines := d.Log
	for len(lines) > 0 {
		// Drop in proportion to the overshoot, at least one line per pass.
		over := len(data) - limit
		drop := 1
		if avg := len(data) / (len(lines) + 1); avg > 0 && over/avg > 1 {
			drop = over / avg
		}
		if drop > len(lines) {
			drop = len(lines)
		}
		lines = lines[drop:]
		trimmed.Log = lines
		if data, err = trimmed.Marshal(); err != nil {
			return nil, err
		}
		if len(data) <= limit {
			return data, nil
		}
	}
	return nil, fmt.Errorf("status document needs %d bytes without log, limit is %d", len(data), limit)
}

// ParseDocument decodes a status document.
func ParseDocument(data []byte) (*Document, error) {
	var doc Document
	if err := sonic.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode status document: %w", err)
	}
	return &doc, nil
}

// Log is the process-wide, append-only sequence of status log lines.
// It has its own lock so logging never waits on registry access.
type Log struct {
	mu    sync.Mutex
	lines []string
}

// Append adds a line. Trailing newlines are stripped.
func (l *Log) Append(line string) {
	line = strings.TrimRight(line, "\n")
	l.mu.Lock()
	l.lines = append(l.lines, line)
	l.mu.Unlock()
}

// Lines returns a copy of all lines appended so far.
func (l *Log) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.lines...)
}

// Len returns the number of lines.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lines)
}
