package status

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
)

func TestDocument_MarshalShape(t *testing.T) {
	doc := NewDocument([]string{"Started AutoConnect service"}, []Result{{
		Name:           "eth0",
		Index:          2,
		Description:    "00:11:22:33:44:55",
		AddressList:    []string{"10.1.1.5"},
		CameraNameList: []string{"DeviceA"},
	}})

	data, err := doc.Marshal()
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	for _, want := range []string{
		`"Name":"AutoConnect"`,
		`"Version":"v1.0.0"`,
		`"Log":["Started AutoConnect service"]`,
		`"AddressList":["10.1.1.5"]`,
		`"CameraNameList":["DeviceA"]`,
	} {
		if !strings.Contains(string(data), want) {
			t.Errorf("Marshal() = %s, missing %s", data, want)
		}
	}
	if strings.Contains(string(data), `"Command"`) {
		t.Errorf("Marshal() = %s, want no Command field", data)
	}
}

func TestDocument_EmptyResultOmitted(t *testing.T) {
	data, err := NewDocument(nil, nil).Marshal()
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if strings.Contains(string(data), `"Result"`) {
		t.Errorf("Marshal() = %s, want no Result field", data)
	}
	if !strings.Contains(string(data), `"Log":[]`) {
		t.Errorf("Marshal() = %s, want empty Log array", data)
	}
}

func TestDocument_StopRoundTrip(t *testing.T) {
	doc := NewDocument([]string{"Exiting autoconnect"}, nil)
	doc.Command = CommandStop

	data, err := doc.Marshal()
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	parsed, err := ParseDocument(data)
	if err != nil {
		t.Fatalf("ParseDocument() error = %v", err)
	}
	if parsed.Command != CommandStop {
		t.Errorf("Command = %q, want %q", parsed.Command, CommandStop)
	}
}

func TestDocument_MarshalLimitDropsOldestLines(t *testing.T) {
	var lines []string
	for i := 0; i < 500; i++ {
		lines = append(lines, fmt.Sprintf("line %03d with some padding text", i))
	}
	doc := NewDocument(lines, nil)

	data, err := doc.MarshalLimit(2048)
	if err != nil {
		t.Fatalf("MarshalLimit() error = %v", err)
	}
	if len(data) > 2048 {
		t.Errorf("MarshalLimit() produced %d bytes, want <= 2048", len(data))
	}
	if !strings.Contains(string(data), "line 499") {
		t.Error("MarshalLimit() dropped the newest line")
	}
	if strings.Contains(string(data), "line 000") {
		t.Error("MarshalLimit() kept the oldest line")
	}
	if len(doc.Log) != 500 {
		t.Errorf("MarshalLimit() modified doc.Log, len = %d", len(doc.Log))
	}
}

func TestDocument_MarshalLimitTooSmall(t *testing.T) {
	if _, err := NewDocument([]string{"x"}, nil).MarshalLimit(10); err == nil {
		t.Error("MarshalLimit(10) error = nil, want error")
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name      string
		payload   string
		want      *Command
		wantErr   bool
		unknownOK bool
	}{
		{name: "empty", payload: "", want: nil},
		{name: "nul padding", payload: "\x00\x00\x00", want: nil},
		{name: "stop", payload: `{"Command":"Stop"}`, want: &Command{Kind: KindStop}},
		{name: "stop with padding", payload: "{\"Command\":\"Stop\"}\x00\x00", want: &Command{Kind: KindStop}},
		{name: "set ip string index", payload: `{"SetIP":true,"index":"0"}`, want: &Command{Kind: KindSetAddress, Index: 0}},
		{name: "set ip numeric index", payload: `{"SetIP":true,"index":3}`, want: &Command{Kind: KindSetAddress, Index: 3}},
		{name: "set ip bad index", payload: `{"SetIP":true,"index":"abc"}`, wantErr: true},
		{name: "set ip missing index", payload: `{"SetIP":true}`, wantErr: true},
		{name: "malformed", payload: `{"Command":`, wantErr: true},
		{name: "unknown command", payload: `{"Command":"Reboot"}`, wantErr: true, unknownOK: true},
		{name: "no command", payload: `{"Hello":1}`, wantErr: true, unknownOK: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCommand([]byte(tt.payload))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseCommand() = %+v, want error", got)
				}
				if tt.unknownOK && !errors.Is(err, ErrUnknownCommand) {
					t.Errorf("ParseCommand() error = %v, want ErrUnknownCommand", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseCommand() error = %v", err)
			}
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("ParseCommand() = %+v, want %+v", got, tt.want)
			}
			if got != nil && *got != *tt.want {
				t.Errorf("ParseCommand() = %+v, want %+v", *got, *tt.want)
			}
		})
	}
}

func TestEncodeCommandsParse(t *testing.T) {
	stop, err := ParseCommand(EncodeStop())
	if err != nil || stop == nil || stop.Kind != KindStop {
		t.Errorf("ParseCommand(EncodeStop()) = %+v, %v", stop, err)
	}
	set, err := ParseCommand(EncodeSetAddress(4))
	if err != nil || set == nil || set.Kind != KindSetAddress || set.Index != 4 {
		t.Errorf("ParseCommand(EncodeSetAddress(4)) = %+v, %v", set, err)
	}
}

func TestLog_ConcurrentAppend(t *testing.T) {
	var l Log
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				l.Append(fmt.Sprintf("task %d line %d\n", i, j))
			}
		}(i)
	}
	wg.Wait()

	if l.Len() != 1000 {
		t.Errorf("Len() = %d, want 1000", l.Len())
	}
	for _, line := range l.Lines() {
		if strings.HasSuffix(line, "\n") {
			t.Fatalf("line %q kept its trailing newline", line)
		}
	}
}
