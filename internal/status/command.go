package status

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
)

// ErrUnknownCommand is returned for well-formed payloads that carry no known command.
var ErrUnknownCommand = errors.New("unknown command")

// CommandKind identifies an incoming command.
type CommandKind int

const (
	// KindStop ends the run loop.
	KindStop CommandKind = iota + 1
	// KindSetAddress reconfigures the host address for a published result.
	KindSetAddress
)

// String returns the command name
func (k CommandKind) String() string {
	switch k {
	case KindStop:
		return "Stop"
	case KindSetAddress:
		return "SetIP"
	default:
		return fmt.Sprintf("CommandKind(%d)", int(k))
	}
}

// Command is a parsed controller request.
type Command struct {
	Kind CommandKind
	// Index selects an entry of the last published Result set (KindSetAddress only).
	Index int
}

// wireCommand mirrors the controller's JSON. Index is kept raw because
// controllers send it as a decimal string, some as a bare number.
type wireCommand struct {
	Command string          `json:"Command,omitempty"`
	SetIP   *bool           `json:"SetIP,omitempty"`
	Index   json.RawMessage `json:"index,omitempty"`
}

// ParseCommand decodes one controller payload. Empty or all-NUL payloads
// return (nil, nil): there was nothing to read.
func ParseCommand(payload []byte) (*Command, error) {
	payload = bytes.TrimRight(payload, "\x00")
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 {
		return nil, nil
	}

	var w wireCommand
	if err := sonic.Unmarshal(payload, &w); err != nil {
		return nil, fmt.Errorf("malformed command payload: %w", err)
	}

	if w.Command == CommandStop {
		return &Command{Kind: KindStop}, nil
	}
	if w.SetIP != nil && *w.SetIP {
		index, err := parseIndex(w.Index)
		if err != nil {
			return nil, err
		}
		return &Command{Kind: KindSetAddress, Index: index}, nil
	}
	if w.Command != "" {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, w.Command)
	}
	return nil, ErrUnknownCommand
}

func parseIndex(raw []byte) (int, error) {
	if len(raw) == 0 {
		return 0, fmt.Errorf("SetIP command without index")
	}
	text := strings.TrimSpace(string(raw))
	if unquoted, err := strconv.Unquote(text); err == nil {
		text = unquoted
	}
	index, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0, fmt.Errorf("invalid SetIP index %s: %w", string(raw), err)
	}
	return index, nil
}

// EncodeStop returns the payload a controller writes to stop the service.
func EncodeStop() []byte {
	data, _ := sonic.Marshal(wireStop{Command: CommandStop})
	return data
}

// EncodeSetAddress returns the payload a controller writes to request a
// host address change for the indexed result.
func EncodeSetAddress(index int) []byte {
	data, _ := sonic.Marshal(wireSetIP{SetIP: true, Index: strconv.Itoa(index)})
	return data
}

type wireStop struct {
	Command string `json:"Command"`
}

type wireSetIP struct {
	SetIP bool   `json:"SetIP"`
	Index string `json:"index"`
}
