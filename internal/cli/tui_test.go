package cli

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestProductListModelNavigation(t *testing.T) {
	var m tea.Model = NewProductListModel([]string{"/a/ide.product", "/a/server.product", "/b/tools.product"})

	for _, k := range []string{"down", "j", "j", "up"} {
		m, _ = m.Update(key(k))
	}
	if got := m.(ProductListModel).Cursor; got != 1 {
		t.Fatalf("Cursor = %d, want 1", got)
	}

	m, cmd := m.Update(key("enter"))
	if cmd == nil {
		t.Error("enter should quit the program")
	}
	if got := m.(ProductListModel).Selected; got != "/a/server.product" {
		t.Errorf("Selected = %q", got)
	}
}

func TestProductListModelQuit(t *testing.T) {
	var m tea.Model = NewProductListModel([]string{"/a/ide.product"})
	m, cmd := m.Update(key("q"))
	if cmd == nil {
		t.Error("q should quit the program")
	}
	if m.(ProductListModel).Selected != "" {
		t.Error("quitting must not select")
	}
}

func TestProductListModelView(t *testing.T) {
	view := NewProductListModel([]string{"/a/ide.product", "/b/tools.product"}).View()
	for _, want := range []string{"Select Product", "ide.product", "tools.product"} {
		if !strings.Contains(view, want) {
			t.Errorf("View() missing %q", want)
		}
	}
}
