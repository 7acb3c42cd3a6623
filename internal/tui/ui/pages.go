package ui

import "github.com/rivo/tview"

// Pages is a stack of components on top of tview.Pages. It drives the
// component lifecycle and reports every stack change.
type Pages struct {
	*tview.Pages
	components map[string]Component
	stack      []string
	onChange   func(stack []Component)
}

// NewPages creates an empty page stack.
func NewPages() *Pages {
	return &Pages{
		Pages:      tview.NewPages(),
		components: make(map[string]Component),
	}
}

// SetOnChange sets a callback that fires when the stack changes.
func (p *Pages) SetOnChange(fn func(stack []Component)) {
	p.onChange = fn
}

// Add registers a hidden component under name and initializes it.
func (p *Pages) Add(name string, c Component) {
	p.components[name] = c
	p.AddPage(name, c, true, false)
	c.Init()
}

// Component returns the component registered under name.
func (p *Pages) Component(name string) Component {
	return p.components[name]
}

// Push shows a component on top of the stack. Pushing the current top is
// a no-op.
func (p *Pages) Push(name string) {
	if p.Current() == name {
		return
	}
	if len(p.stack) > 0 {
		p.HidePage(p.stack[len(p.stack)-1])
	}
	p.stack = append(p.stack, name)
	p.show(name)
	p.notify()
}

// Pop removes the top component and shows the previous one. It returns the
// popped name, or empty if at most one page remains.
func (p *Pages) Pop() string {
	if len(p.stack) <= 1 {
		return ""
	}
	top := p.stack[len(p.stack)-1]
	p.HidePage(top)
	p.stack = p.stack[:len(p.stack)-1]
	p.stopIfGone(top)
	p.show(p.stack[len(p.stack)-1])
	p.notify()
	return top
}

// Current returns the name of the top page.
func (p *Pages) Current() string {
	if len(p.stack) == 0 {
		return ""
	}
	return p.stack[len(p.stack)-1]
}

// Depth returns the current stack depth.
func (p *Pages) Depth() int {
	return len(p.stack)
}

// Reset clears the stack and shows only the given page.
func (p *Pages) Reset(name string) {
	old := p.stack
	p.stack = []string{name}
	for _, n := range old {
		p.HidePage(n)
		p.stopIfGone(n)
	}
	p.show(name)
	p.notify()
}

func (p *Pages) show(name string) {
	p.ShowPage(name)
	p.SendToFront(name)
	if c, ok := p.components[name]; ok {
		c.Start()
	}
}

func (p *Pages) stopIfGone(name string) {
	for _, n := range p.stack {
		if n == name {
			return
		}
	}
	if c, ok := p.components[name]; ok {
		c.Stop()
	}
}

func (p *Pages) notify() {
	if p.onChange == nil {
		return
	}
	stack := make([]Component, 0, len(p.stack))
	for _, n := range p.stack {
		if c, ok := p.components[n]; ok {
			stack = append(stack, c)
		}
	}
	p.onChange(stack)
}
