package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/multisense/autoconnect/internal/status"
)

func sampleResults() []status.Result {
	return []status.Result{
		{
			Name:           "eth1",
			Index:          3,
			Description:    "00:11:22:33:44:55",
			AddressList:    []string{"10.66.171.21", "10.66.171.22"},
			CameraNameList: []string{"S30-front", "S30-rear"},
		},
		{
			Name:           "eth2",
			Index:          4,
			AddressList:    []string{"192.168.0.9"},
			CameraNameList: []string{},
		},
	}
}

func TestResultRows(t *testing.T) {
	rows := ResultRows(sampleResults())
	want := [][]string{
		{"0", "eth1 (3)", "00:11:22:33:44:55", "10.66.171.21", "S30-front"},
		{"", "", "", "10.66.171.22", "S30-rear"},
		{"1", "eth2 (4)", "", "192.168.0.9", ""},
	}
	if len(rows) != len(want) {
		t.Fatalf("got %d rows, want %d", len(rows), len(want))
	}
	for i := range want {
		for j := range want[i] {
			if rows[i][j] != want[i][j] {
				t.Errorf("row %d col %d = %q, want %q", i, j, rows[i][j], want[i][j])
			}
		}
	}
}

func TestRenderResults(t *testing.T) {
	tests := []struct {
		name    string
		results []status.Result
		want    []string
	}{
		{"empty", nil, []string{"No devices found yet"}},
		{"devices", sampleResults(), []string{"ADAPTER", "eth1 (3)", "10.66.171.22", "S30-rear", "192.168.0.9"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := RenderResults(tt.results, 80)
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("output missing %q:\n%s", w, out)
				}
			}
		})
	}
}

func TestTail(t *testing.T) {
	lines := []string{"a", "b", "c", "d"}
	tests := []struct {
		n    int
		want string
	}{
		{2, "c,d"},
		{4, "a,b,c,d"},
		{10, "a,b,c,d"},
		{0, "a,b,c,d"},
	}
	for _, tt := range tests {
		if got := strings.Join(Tail(lines, tt.n), ","); got != tt.want {
			t.Errorf("Tail(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestIsErrorLine(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"Setup Error: open capture on eth0: permission denied", true},
		{"Malformed Input: set ip: result index 3 out of range, 1 results published", true},
		{"No Device: probe on eth0: no device at 10.0.0.9", true},
		{"Transient Error: list interfaces: boom", true},
		{"Found adapter: eth0 index: 2 supports: true", false},
		{"Got address 10.0.0.9 on adapter: eth0", false},
	}
	for _, tt := range tests {
		if got := IsErrorLine(tt.line); got != tt.want {
			t.Errorf("IsErrorLine(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestRenderDocument(t *testing.T) {
	doc := status.NewDocument([]string{"Started AutoConnect service", "line two", "line three"}, sampleResults())
	doc.Command = status.CommandStop

	out := RenderDocument(doc, 1, 80)
	for _, w := range []string{"AutoConnect v1.0.0", "run finished", "S30-front", "Log (3 lines)", "line three"} {
		if !strings.Contains(out, w) {
			t.Errorf("output missing %q:\n%s", w, out)
		}
	}
	if strings.Contains(out, "line two") {
		t.Error("log tail should only keep the last line")
	}
}

func TestHeader_KeepsParamOrder(t *testing.T) {
	out := NewHeader("Device discovery", "autoconnect run",
		Field{"Run limit", "1m0s"},
		Field{"IPC", "enabled"},
		Field{"Workers", "5"},
	).SetWidth(80).Render()

	if !strings.Contains(out, "DEVICE DISCOVERY") {
		t.Errorf("title not upper-cased:\n%s", out)
	}
	a, b, c := strings.Index(out, "Run limit"), strings.Index(out, "IPC"), strings.Index(out, "Workers")
	if a < 0 || b < 0 || c < 0 || !(a < b && b < c) {
		t.Errorf("params out of order:\n%s", out)
	}
}

func TestOutcome_Render(t *testing.T) {
	tests := []struct {
		name    string
		outcome *Outcome
		want    []string
	}{
		{
			"success",
			NewSuccess("Stop command delivered", Field{"Region", "/dev/shm/mem"}),
			[]string{"SUCCESS", "Stop command delivered", "/dev/shm/mem"},
		},
		{
			"failure",
			NewFailure("Cannot reach service", errors.New("no such file"), "Start autoconnect with --ipc"),
			[]string{"FAILED", "Error: no such file", "Troubleshooting:", "Start autoconnect with --ipc"},
		},
		{
			"warning",
			NewWarning("No devices found"),
			[]string{"WARNING", "No devices found"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := tt.outcome.SetWidth(80).Render()
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("output missing %q:\n%s", w, out)
				}
			}
		})
	}
}

func TestPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf).SetWidth(20)
	if p.Width() != MinTerminalWidth {
		t.Errorf("Width() = %d, want clamped %d", p.Width(), MinTerminalWidth)
	}
	p.PrintResults(sampleResults())
	if !strings.Contains(buf.String(), "10.66.171.21") {
		t.Errorf("printer output missing address:\n%s", buf.String())
	}
}
