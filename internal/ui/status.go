package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/multisense/autoconnect/internal/status"
)

// errorPrefixes are the classified error kinds the service writes into its log.
var errorPrefixes = []string{"Transient Error:", "Setup Error:", "Malformed Input:", "No Device:"}

// ResultRows flattens results into table rows, one per discovered device.
// The first column is the result index a SetIP command takes.
func ResultRows(results []status.Result) [][]string {
	var rows [][]string
	for i, r := range results {
		for j, addr := range r.AddressList {
			name := ""
			if j < len(r.CameraNameList) {
				name = r.CameraNameList[j]
			}
			index, adapter, mac := "", "", ""
			if j == 0 {
				index = fmt.Sprint(i)
				adapter = fmt.Sprintf("%s (%d)", r.Name, r.Index)
				mac = r.Description
			}
			rows = append(rows, []string{index, adapter, mac, addr, name})
		}
	}
	return rows
}

// RenderResults renders the results table.
func RenderResults(results []status.Result, width int) string {
	width = ClampWidth(width)
	rows := ResultRows(results)
	if len(rows) == 0 {
		return PanelStyle(width).Render(EmptyStyle.Render("No devices found yet"))
	}

	headers := []string{"#", "ADAPTER", "MAC", "ADDRESS", "DEVICE"}
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}

	lines := []string{renderRow(headers, widths, TableHeaderStyle)}
	for _, row := range rows {
		cells := make([]string, len(row))
		copy(cells, row)
		line := renderRow(cells[:4], widths[:4], TableCellStyle)
		lines = append(lines, line+"  "+DeviceNameStyle.Render(cells[4]))
	}
	return PanelStyle(width).Render(strings.Join(lines, "\n"))
}

func renderRow(cells []string, widths []int, style lipgloss.Style) string {
	parts := make([]string, len(cells))
	for i, cell := range cells {
		parts[i] = style.Render(padRight(cell, widths[i]))
	}
	return strings.Join(parts, "  ")
}

// Tail returns the last n lines.
func Tail(lines []string, n int) []string {
	if n <= 0 || len(lines) <= n {
		return lines
	}
	return lines[len(lines)-n:]
}

// IsErrorLine reports whether a log line carries a classified error.
func IsErrorLine(line string) bool {
	for _, p := range errorPrefixes {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return false
}

// RenderLogLines styles log lines without a border.
func RenderLogLines(lines []string) string {
	styled := make([]string, len(lines))
	for i, line := range lines {
		if IsErrorLine(line) {
			styled[i] = LogErrorLineStyle.Render(line)
		} else {
			styled[i] = LogLineStyle.Render(line)
		}
	}
	return strings.Join(styled, "\n")
}

// RenderLog renders the last n lines of the status log.
func RenderLog(lines []string, n, width int) string {
	width = ClampWidth(width)
	title := SectionTitleStyle.Render(fmt.Sprintf("Log (%d lines)", len(lines)))
	if len(lines) == 0 {
		return PanelStyle(width).Render(title + "\n" + EmptyStyle.Render("empty"))
	}
	return PanelStyle(width).Render(title + "\n" + RenderLogLines(Tail(lines, n)))
}

// RenderDocument renders a full status document: identity, results and the
// log tail. A document tagged Stop is the final one of a run.
func RenderDocument(doc *status.Document, logTail, width int) string {
	ident := SectionTitleStyle.Render(fmt.Sprintf("%s %s", doc.Name, doc.Version))
	if doc.Command == status.CommandStop {
		ident += "  " + WarningTitleStyle.Render("run finished")
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		ident,
		RenderResults(doc.Result, width),
		RenderLog(doc.Log, logTail, width),
	)
}
