package monitor

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/multisense/autoconnect/internal/status"
)

type fakeSource struct {
	data    []byte
	err     error
	pending bool
	sent    [][]byte
	sendErr error
}

func (f *fakeSource) Snapshot() ([]byte, error) { return f.data, f.err }

func (f *fakeSource) SendCommand(cmd []byte) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, cmd)
	return nil
}

func (f *fakeSource) Pending() bool { return f.pending }

func publish(t *testing.T, src *fakeSource, doc *status.Document) {
	t.Helper()
	data, err := doc.Marshal()
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	src.data = data
}

func twoResults() []status.Result {
	return []status.Result{
		{Name: "eth1", Index: 3, AddressList: []string{"10.66.171.21"}, CameraNameList: []string{"front"}},
		{Name: "eth2", Index: 4, AddressList: []string{"192.168.0.9"}, CameraNameList: []string{"rear"}},
	}
}

// step feeds msg to the model and runs the command it returns, once.
func step(t *testing.T, m Model, msg tea.Msg) (Model, tea.Msg) {
	t.Helper()
	next, cmd := m.Update(msg)
	m = next.(Model)
	if cmd == nil {
		return m, nil
	}
	return m, cmd()
}

func keyPress(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestModel_PollAppliesDocument(t *testing.T) {
	src := &fakeSource{}
	publish(t, src, status.NewDocument([]string{"Started AutoConnect service"}, twoResults()))

	m := New(src, 0)
	msg := m.poll()()
	m, _ = step(t, m, msg)

	if m.Document() == nil {
		t.Fatal("document not applied")
	}
	if m.resultCount() != 2 {
		t.Errorf("resultCount() = %d, want 2", m.resultCount())
	}
	if m.Finished() {
		t.Error("running document reported as finished")
	}
	view := m.View()
	for _, want := range []string{"running", "10.66.171.21", "SetIP target: #0 eth1", "Log (1 lines)"} {
		if !strings.Contains(view, want) {
			t.Errorf("View() missing %q:\n%s", want, view)
		}
	}
}

func TestModel_EmptySnapshotKeepsPrevious(t *testing.T) {
	src := &fakeSource{}
	publish(t, src, status.NewDocument(nil, twoResults()))

	m := New(src, 0)
	m, _ = step(t, m, m.poll()())

	src.data = nil
	m, _ = step(t, m, m.poll()())
	if m.Document() == nil || m.resultCount() != 2 {
		t.Error("empty snapshot must not clear the last document")
	}
}

func TestModel_WaitingView(t *testing.T) {
	m := New(&fakeSource{}, 0)
	m, _ = step(t, m, m.poll()())
	if !strings.Contains(m.View(), "waiting for the service") {
		t.Errorf("View() = %q, want waiting notice", m.View())
	}
}

func TestModel_SnapshotErrors(t *testing.T) {
	tests := []struct {
		name string
		src  *fakeSource
		want string
	}{
		{"read error", &fakeSource{err: errors.New("region closed")}, "region closed"},
		{"garbage", &fakeSource{data: []byte("{nope")}, "failed to decode status document"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(tt.src, 0)
			m, _ = step(t, m, m.poll()())
			if !strings.Contains(m.View(), tt.want) {
				t.Errorf("View() missing %q:\n%s", tt.want, m.View())
			}
		})
	}
}

func TestModel_FinalDocumentStopsPolling(t *testing.T) {
	src := &fakeSource{}
	doc := status.NewDocument([]string{"Exiting autoconnect"}, nil)
	doc.Command = status.CommandStop
	publish(t, src, doc)

	m := New(src, 0)
	next, cmd := m.Update(m.poll()())
	m = next.(Model)
	if !m.Finished() {
		t.Error("Stop-tagged document must finish the model")
	}
	if cmd != nil {
		t.Error("polling must stop after the final document")
	}

	// Stop after the run has ended sends nothing.
	m, msg := step(t, m, keyPress("s"))
	if msg != nil || len(src.sent) != 0 {
		t.Errorf("sent %d commands after finish", len(src.sent))
	}
}

func TestModel_Commands(t *testing.T) {
	tests := []struct {
		name     string
		keys     []string
		wantSent []string
		wantErr  string
	}{
		{"stop", []string{"s"}, []string{`{"Command":"Stop"}`}, ""},
		{"enter selects first", []string{"enter"}, []string{`{"SetIP":true,"index":"0"}`}, ""},
		{"down then enter", []string{"down", "enter"}, []string{`{"SetIP":true,"index":"1"}`}, ""},
		{"down clamps", []string{"down", "down", "down", "enter"}, []string{`{"SetIP":true,"index":"1"}`}, ""},
		{"digit", []string{"1"}, []string{`{"SetIP":true,"index":"1"}`}, ""},
		{"digit out of range", []string{"7"}, nil, "result 7 does not exist"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &fakeSource{}
			publish(t, src, status.NewDocument(nil, twoResults()))
			m := New(src, 0)
			m, _ = step(t, m, m.poll()())

			for _, k := range tt.keys {
				var msg tea.Msg
				m, msg = step(t, m, keyPress(k))
				if msg != nil {
					m, _ = step(t, m, msg)
				}
			}

			if len(src.sent) != len(tt.wantSent) {
				t.Fatalf("sent %d commands, want %d", len(src.sent), len(tt.wantSent))
			}
			for i, want := range tt.wantSent {
				if string(src.sent[i]) != want {
					t.Errorf("command %d = %s, want %s", i, src.sent[i], want)
				}
			}
			if tt.wantErr != "" && !strings.Contains(m.View(), tt.wantErr) {
				t.Errorf("View() missing %q:\n%s", tt.wantErr, m.View())
			}
		})
	}
}

func TestModel_PendingCommandNotOverwritten(t *testing.T) {
	src := &fakeSource{pending: true}
	publish(t, src, status.NewDocument(nil, twoResults()))
	m := New(src, 0)
	m, _ = step(t, m, m.poll()())

	m, msg := step(t, m, keyPress("s"))
	m, _ = step(t, m, msg)
	if len(src.sent) != 0 {
		t.Error("command written while the previous one is pending")
	}
	if !strings.Contains(m.View(), errCommandPending.Error()) {
		t.Errorf("View() missing pending notice:\n%s", m.View())
	}
}

func TestModel_SetIPWithoutResults(t *testing.T) {
	src := &fakeSource{}
	publish(t, src, status.NewDocument(nil, nil))
	m := New(src, 0)
	m, _ = step(t, m, m.poll()())

	m, msg := step(t, m, keyPress("enter"))
	if msg != nil || len(src.sent) != 0 {
		t.Error("SetIP sent without results")
	}
	if !strings.Contains(m.View(), "no results") {
		t.Errorf("View() missing error:\n%s", m.View())
	}
}

func TestModel_Quit(t *testing.T) {
	m := New(&fakeSource{}, 0)
	_, msg := step(t, m, keyPress("q"))
	if _, ok := msg.(tea.QuitMsg); !ok {
		t.Errorf("q produced %T, want tea.QuitMsg", msg)
	}
}
