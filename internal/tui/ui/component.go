package ui

import "github.com/rivo/tview"

// MenuHint describes a keyboard shortcut for display in the menu bar.
type MenuHint struct {
	Key         string
	Description string
	Numeric     bool // drawn in the numeric key color
}

// Component is a dashboard page. Pages calls Init once when the component
// is added, Start each time it reaches the top of the stack and Stop when it
// leaves the stack.
type Component interface {
	tview.Primitive
	Name() string
	Init()
	Start()
	Stop()
	Hints() []MenuHint
}
