package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"tessera-tui/model"
)

func (m *appModel) moveCursor(key string) {
	rows := m.seats.RowNames()
	if len(rows) == 0 {
		return
	}

	switch key {
	case "up", "k":
		if m.cursorRow > 0 {
			m.cursorRow--
		}
	case "down", "j":
		if m.cursorRow < len(rows)-1 {
			m.cursorRow++
		}
	case "left", "h":
		if m.cursorCol > 0 {
			m.cursorCol--
		}
	case "right", "l":
		row := m.seats[rows[m.cursorRow]]
		if m.cursorCol < len(row)-1 {
			m.cursorCol++
		}
	}

	row := m.seats[rows[m.cursorRow]]
	if m.cursorCol >= len(row) {
		m.cursorCol = len(row) - 1
	}
	if m.cursorCol < 0 {
		m.cursorCol = 0
	}
}

func (m appModel) seatAtCursor() (model.SeatID, model.Seat, bool) {
	rows := m.seats.RowNames()
	if m.cursorRow < 0 || m.cursorRow >= len(rows) {
		return model.SeatID{}, model.Seat{}, false
	}
	row := m.seats[rows[m.cursorRow]]
	if m.cursorCol < 0 || m.cursorCol >= len(row) {
		return model.SeatID{}, model.Seat{}, false
	}
	seat := row[m.cursorCol]
	return model.SeatID{Row: rows[m.cursorRow], Number: seat.SeatNumber}, seat, true
}

type seatCell struct {
	token    string
	label    string
	selected bool
	pending  bool
	status   model.SeatStatus
}

func (m appModel) renderSeatMap() string {
	rows := m.seats.RowNames()
	if len(rows) == 0 {
		return "No seat map data."
	}

	available := 0
	reserved := 0
	sold := 0
	total := 0
	maxCols := 0

	grid := make([][]seatCell, len(rows))
	for r, rowName := range rows {
		seats := m.seats[rowName]
		if len(seats) > maxCols {
			maxCols = len(seats)
		}
		cells := make([]seatCell, len(seats))
		for c, seat := range seats {
			id := model.SeatID{Row: rowName, Number: seat.SeatNumber}
			cell := seatCell{
				label:    strconv.Itoa(seat.SeatNumber),
				selected: m.selection.Contains(id),
				pending:  m.pending[id],
				status:   seat.Status,
			}
			switch seat.Status {
			case model.SeatSold:
				cell.token = "XX"
				sold++
			case model.SeatReserved:
				cell.token = "##"
				reserved++
			default:
				cell.token = "[]"
				available++
			}
			if cell.selected {
				cell.token = "()"
			}
			if cell.pending {
				cell.token = ".."
			}
			total++
			cells[c] = cell
		}
		grid[r] = cells
	}

	rowWidth := 2
	for _, name := range rows {
		if len(name) > rowWidth {
			rowWidth = len(name)
		}
	}
	cellWidth := 2
	if m.showSeatNumbers {
		for _, cells := range grid {
			for _, cell := range cells {
				if len(cell.label) > cellWidth {
					cellWidth = len(cell.label)
				}
			}
		}
	}

	styleAvailable := lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	styleSelected := lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	stylePending := lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	styleSold := lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	styleReserved := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	styleCursor := lipgloss.NewStyle().Reverse(true)

	gridWidth := maxCols*(cellWidth+1) - 1
	stage := stageBarBlock(gridWidth, "STAGE")
	stageStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("0")).
		Background(lipgloss.Color("214"))
	stageBorderStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("214")).
		Background(lipgloss.Color("236"))

	var b strings.Builder
	b.WriteString(strings.Repeat(" ", rowWidth+1))
	b.WriteString(stageBorderStyle.Render(stage.top))
	b.WriteString("\n")
	b.WriteString(strings.Repeat(" ", rowWidth+1))
	b.WriteString(stageStyle.Render(stage.mid))
	b.WriteString("\n")
	b.WriteString(strings.Repeat(" ", rowWidth+1))
	b.WriteString(stageBorderStyle.Render(stage.bot))
	b.WriteString("\n\n")

	for r, rowName := range rows {
		b.WriteString(fmt.Sprintf("%*s ", rowWidth, rowName))
		for c, cell := range grid[r] {
			text := cell.token
			if m.showSeatNumbers && cell.label != "" {
				text = cell.label
			}
			rendered := padCell(text, cellWidth)
			switch {
			case cell.pending:
				rendered = stylePending.Render(rendered)
			case cell.selected:
				rendered = styleSelected.Render(rendered)
			case cell.status == model.SeatSold:
				rendered = styleSold.Render(rendered)
			case cell.status == model.SeatReserved:
				rendered = styleReserved.Render(rendered)
			default:
				rendered = styleAvailable.Render(rendered)
			}
			if r == m.cursorRow && c == m.cursorCol {
				rendered = styleCursor.Render(padCell(text, cellWidth))
			}
			b.WriteString(rendered)
			if c < len(grid[r])-1 {
				b.WriteString(" ")
			}
		}
		b.WriteString(fmt.Sprintf(" %*s\n", rowWidth, rowName))
	}
	b.WriteString("\n")

	legend := "Legend: [] available • () selected • .. reserving • XX sold • ## held"
	if m.showSeatNumbers {
		legend = "Legend: color shows status • numbers are seat labels • cursor is inverted"
	}
	b.WriteString(hint(legend))
	b.WriteString("\n")

	selectedKeys := make([]string, 0, m.selection.Len())
	for _, id := range m.selection.IDs() {
		selectedKeys = append(selectedKeys, id.Key())
	}
	selectedLabel := "None"
	if len(selectedKeys) > 0 {
		selectedLabel = strings.Join(selectedKeys, ", ")
	}
	counts := fmt.Sprintf("Available: %d • Held: %d • Sold: %d • Total seats: %d", available, reserved, sold, total)
	b.WriteString(hint(counts))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("Selected: %s • Total: %s",
		selectedLabel, formatCents(model.TotalPriceCents(m.selection, m.seats))))

	if m.notice != "" {
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Render(m.notice))
	}
	return b.String()
}

func padCell(text string, width int) string {
	if width <= 0 {
		return ""
	}
	if text == "" {
		return strings.Repeat(" ", width)
	}
	if len(text) >= width {
		return text[:width]
	}
	padding := width - len(text)
	left := padding / 2
	right := padding - left
	return strings.Repeat(" ", left) + text + strings.Repeat(" ", right)
}

type stageBlock struct {
	top string
	mid string
	bot string
}

func stageBarBlock(width int, label string) stageBlock {
	if width < len(label)+4 {
		width = len(label) + 4
	}
	if width < 10 {
		width = 10
	}

	border := "╭" + strings.Repeat("─", width-2) + "╮"
	bottom := "╰" + strings.Repeat("─", width-2) + "╯"

	labelText := " " + label + " "
	padding := width - len(labelText) - 2
	left := padding / 2
	right := padding - left
	mid := "│" + strings.Repeat(" ", left) + labelText + strings.Repeat(" ", right) + "│"
	return stageBlock{top: border, mid: mid, bot: bottom}
}
