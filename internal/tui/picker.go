package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mohaanymo/initfix/internal/models"
)

// PickerResult is returned when the selection is complete.
type PickerResult struct {
	Selected []*models.Track
	Canceled bool
}

// Picker lets the user choose which planned init segments to rewrite.
// Everything starts selected.
type Picker struct {
	tracks       []*models.Track
	selected     map[int]bool
	cursor       int
	scrollOffset int
	visibleRows  int
	width        int
	canceled     bool
}

// NewPicker creates a picker over tracks.
func NewPicker(tracks []*models.Track) *Picker {
	p := &Picker{
		tracks:      tracks,
		selected:    make(map[int]bool, len(tracks)),
		width:       80,
		visibleRows: 15,
	}
	for i := range tracks {
		p.selected[i] = true
	}
	return p
}

func (p *Picker) Init() tea.Cmd {
	return nil
}

func (p *Picker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			p.canceled = true
			return p, tea.Quit

		case "enter":
			return p, tea.Quit

		case "up", "k":
			if p.cursor > 0 {
				p.cursor--
				p.adjustScroll()
			}

		case "down", "j":
			if p.cursor < len(p.tracks)-1 {
				p.cursor++
				p.adjustScroll()
			}

		case " ", "x":
			p.selected[p.cursor] = !p.selected[p.cursor]

		case "a":
			p.selectWhere(func(t *models.Track) bool { return t.IsAudio() })

		case "v":
			p.selectWhere(func(t *models.Track) bool { return t.IsVideo() })

		case "n":
			clear(p.selected)
		}

	case tea.WindowSizeMsg:
		p.width = msg.Width
		p.visibleRows = clamp(msg.Height-12, 3, 40)
	}

	return p, nil
}

func (p *Picker) selectWhere(match func(*models.Track) bool) {
	for i, t := range p.tracks {
		if match(t) {
			p.selected[i] = true
		}
	}
}

func (p *Picker) adjustScroll() {
	if p.cursor < p.scrollOffset {
		p.scrollOffset = p.cursor
	}
	if p.cursor >= p.scrollOffset+p.visibleRows {
		p.scrollOffset = p.cursor - p.visibleRows + 1
	}
}

func (p *Picker) View() string {
	w := clamp(p.width-4, 60, 100)

	var b strings.Builder
	b.WriteString(headerStyle.Width(w).Render(titleStyle.Render("initfix") + dimStyle.Render(" - select init segments")))
	b.WriteString("\n\n")

	if p.scrollOffset > 0 {
		b.WriteString(dimStyle.Render("  ↑ more above"))
		b.WriteString("\n")
	}
	end := min(p.scrollOffset+p.visibleRows, len(p.tracks))
	for i := p.scrollOffset; i < end; i++ {
		b.WriteString(p.renderRow(i))
		b.WriteString("\n")
	}
	if end < len(p.tracks) {
		b.WriteString(dimStyle.Render("  ↓ more below"))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("Selected: %d of %d", p.count(), len(p.tracks))))
	b.WriteString("\n\n")
	b.WriteString(helpStyle.Render(
		keyHelpStyle.Render("↑/↓") + " navigate  " +
			keyHelpStyle.Render("space") + " toggle  " +
			keyHelpStyle.Render("v/a") + " all video/audio  " +
			keyHelpStyle.Render("n") + " none  " +
			keyHelpStyle.Render("enter") + " confirm  " +
			keyHelpStyle.Render("q") + " cancel",
	))

	return contentStyle.Width(w).Render(b.String())
}

func (p *Picker) renderRow(i int) string {
	t := p.tracks[i]
	var b strings.Builder

	if i == p.cursor {
		b.WriteString(selectedStyle.Render("▸ "))
	} else {
		b.WriteString("  ")
	}
	if p.selected[i] {
		b.WriteString(successStyle.Render("[✓] "))
	} else {
		b.WriteString(dimStyle.Render("[ ] "))
	}

	b.WriteString(trackBadge(t))
	b.WriteString(" ")
	b.WriteString(valueStyle.Render(fmt.Sprintf("%-6s", t.Resolution.QualityLabel())))
	b.WriteString(" ")
	b.WriteString(normalStyle.Render(fmt.Sprintf("%-15s", t.Codec)))

	if t.Language != "" {
		b.WriteString(dimStyle.Render(" • "))
		b.WriteString(normalStyle.Render(t.Language))
	}
	if t.Bandwidth > 0 {
		b.WriteString(dimStyle.Render(" • " + formatBandwidth(t.Bandwidth)))
	}
	if t.Encrypted {
		b.WriteString(warningStyle.Render(" • protected"))
	}
	return b.String()
}

func (p *Picker) count() int {
	n := 0
	for _, on := range p.selected {
		if on {
			n++
		}
	}
	return n
}

// Result returns the selected tracks in their original order.
func (p *Picker) Result() PickerResult {
	if p.canceled {
		return PickerResult{Canceled: true}
	}

	var selected []*models.Track
	for i, t := range p.tracks {
		if p.selected[i] {
			selected = append(selected, t)
		}
	}
	return PickerResult{Selected: selected}
}

func formatBandwidth(bw int64) string {
	if bw >= 1000000 {
		return fmt.Sprintf("%.1f Mbps", float64(bw)/1000000)
	}
	if bw >= 1000 {
		return fmt.Sprintf("%.0f kbps", float64(bw)/1000)
	}
	return fmt.Sprintf("%d bps", bw)
}
