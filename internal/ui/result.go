package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// OutcomeType indicates success or failure
type OutcomeType int

const (
	OutcomeSuccess OutcomeType = iota
	OutcomeFailure
	OutcomeWarning
)

// Outcome is the box printed when a command finishes.
type Outcome struct {
	Type            OutcomeType
	Title           string   // e.g., "Stop command delivered"
	Details         []Field  // Rendered in order
	Error           error    // Failure only
	Troubleshooting []string // Failure only
	Width           int
}

// NewSuccess creates a success box
func NewSuccess(title string, details ...Field) *Outcome {
	return &Outcome{Type: OutcomeSuccess, Title: title, Details: details, Width: GetTerminalWidth()}
}

// NewFailure creates a failure box with troubleshooting tips
func NewFailure(title string, err error, troubleshooting ...string) *Outcome {
	return &Outcome{
		Type:            OutcomeFailure,
		Title:           title,
		Error:           err,
		Troubleshooting: troubleshooting,
		Width:           GetTerminalWidth(),
	}
}

// NewWarning creates a warning box
func NewWarning(title string, details ...Field) *Outcome {
	return &Outcome{Type: OutcomeWarning, Title: title, Details: details, Width: GetTerminalWidth()}
}

// SetWidth sets the terminal width for responsive rendering
func (o *Outcome) SetWidth(width int) *Outcome {
	o.Width = width
	return o
}

// Render returns the styled box as a string
func (o *Outcome) Render() string {
	width := o.Width
	if width < MinTerminalWidth {
		width = MinTerminalWidth
	}

	var (
		color lipgloss.Color
		title string
	)
	switch o.Type {
	case OutcomeFailure:
		color = ErrorColor
		title = ErrorTitleStyle.Render("   " + FailureMarker + "  FAILED  ─  " + o.Title)
	case OutcomeWarning:
		color = WarningColor
		title = WarningTitleStyle.Render("   " + WarningMarker + "  WARNING  ─  " + o.Title)
	default:
		color = SuccessColor
		title = SuccessTitleStyle.Render("   " + SuccessMarker + "  SUCCESS  ─  " + o.Title)
	}

	lines := []string{"", title, ""}
	for _, d := range o.Details {
		lines = append(lines, ResultKeyStyle.Render("   "+d.Key+":")+" "+ResultValueStyle.Render(d.Value))
	}
	if len(o.Details) > 0 {
		lines = append(lines, "")
	}
	if o.Type == OutcomeFailure {
		if o.Error != nil {
			lines = append(lines, ErrorMessageStyle.Render("   Error: "+o.Error.Error()), "")
		}
		if len(o.Troubleshooting) > 0 {
			lines = append(lines, o.renderTroubleshooting(width), "")
		}
	}

	return OutcomeBoxStyle(width, color).Render(strings.Join(lines, "\n"))
}

func (o *Outcome) renderTroubleshooting(width int) string {
	lines := []string{TroubleshootingTitleStyle.Render("Troubleshooting:"), ""}
	for _, tip := range o.Troubleshooting {
		lines = append(lines, TroubleshootingItemStyle.Render("  "+BulletMarker+" "+tip))
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(MutedColor).
		Width(max(width-12, 40)).
		Padding(0, 1).
		MarginLeft(3).
		Render(strings.Join(lines, "\n"))
}

// String implements fmt.Stringer
func (o *Outcome) String() string {
	return o.Render()
}
