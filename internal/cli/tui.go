package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// =============================================================================
// ProductListModel - Interactive product descriptor selection
// =============================================================================

// ProductListModel is the bubbletea model for choosing one of several
// .product files found in a directory.
type ProductListModel struct {
	Paths    []string
	Cursor   int
	Selected string
}

// NewProductListModel creates a new product list model.
func NewProductListModel(paths []string) ProductListModel {
	return ProductListModel{Paths: paths}
}

func (m ProductListModel) Init() tea.Cmd {
	return nil
}

func (m ProductListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
			}
		case "down", "j":
			if m.Cursor < len(m.Paths)-1 {
				m.Cursor++
			}
		case "enter":
			m.Selected = m.Paths[m.Cursor]
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m ProductListModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Select Product"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("arrows: navigate  enter: select  q: quit"))
	b.WriteString("\n\n")

	for i, p := range m.Paths {
		cursor := "  "
		if i == m.Cursor {
			cursor = "> "
		}
		line := fmt.Sprintf("%s%-32s  %s", cursor, filepath.Base(p), listDimStyle.Render(filepath.Dir(p)))
		if i == m.Cursor {
			b.WriteString(listSelectedStyle.Render(line))
		} else {
			b.WriteString(listNormalStyle.Render(line))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// pickProduct lets the user choose among paths. It returns "" when the user
// quits without choosing.
func pickProduct(paths []string) (string, error) {
	final, err := tea.NewProgram(NewProductListModel(paths)).Run()
	if err != nil {
		return "", err
	}
	m, ok := final.(ProductListModel)
	if !ok {
		return "", nil
	}
	return m.Selected, nil
}
