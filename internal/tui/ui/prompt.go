package ui

import (
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// PromptMode selects what a submitted prompt line means.
type PromptMode int

const (
	PromptCommand PromptMode = iota
	PromptFilter
	PromptEdit
)

const historySize = 50

// Prompt is the single-line input shown above the pages for commands,
// conversation filters and profile edits. Commands keep a recall history
// and complete against a fixed word list.
type Prompt struct {
	*tview.InputField
	mode     PromptMode
	words    []string
	history  []string
	recall   int
	onSubmit func(mode PromptMode, text string)
	onChange func(mode PromptMode, text string)
	onCancel func()
}

// NewPrompt creates a hidden prompt styled with theme.
func NewPrompt(theme *Theme) *Prompt {
	p := &Prompt{InputField: tview.NewInputField()}
	p.SetBorder(true)
	p.SetBorderColor(theme.PromptBorderColor)
	p.SetBackgroundColor(theme.BgColor)
	p.SetFieldBackgroundColor(theme.BgColor)
	p.SetFieldTextColor(theme.FgColor)
	p.SetLabelColor(theme.MenuKeyColor)

	p.SetDoneFunc(p.done)
	p.SetChangedFunc(func(text string) {
		if p.onChange != nil {
			p.onChange(p.mode, text)
		}
	})
	p.SetAutocompleteFunc(p.complete)
	p.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if p.mode != PromptCommand {
			return event
		}
		switch event.Key() {
		case tcell.KeyUp:
			p.step(-1)
			return nil
		case tcell.KeyDown:
			p.step(1)
			return nil
		}
		return event
	})
	return p
}

func (p *Prompt) done(key tcell.Key) {
	switch key {
	case tcell.KeyEnter:
		text := strings.TrimSpace(p.GetText())
		if text == "" && p.mode != PromptEdit {
			p.cancel()
			return
		}
		if p.mode == PromptCommand {
			p.remember(text)
		}
		p.SetText("")
		if p.onSubmit != nil {
			p.onSubmit(p.mode, text)
		}
	case tcell.KeyEscape:
		p.cancel()
	}
}

func (p *Prompt) cancel() {
	p.SetText("")
	if p.onCancel != nil {
		p.onCancel()
	}
}

// SetOnSubmit sets the callback for a confirmed line.
func (p *Prompt) SetOnSubmit(fn func(mode PromptMode, text string)) {
	p.onSubmit = fn
}

// SetOnChange sets a callback fired on every edit, used for live filtering.
func (p *Prompt) SetOnChange(fn func(mode PromptMode, text string)) {
	p.onChange = fn
}

// SetOnCancel sets the callback for Esc or an empty submit.
func (p *Prompt) SetOnCancel(fn func()) {
	p.onCancel = fn
}

// SetCompletions sets the command words offered while typing a command.
func (p *Prompt) SetCompletions(words []string) {
	p.words = words
}

// Activate opens the prompt empty in mode.
func (p *Prompt) Activate(mode PromptMode) {
	p.mode = mode
	p.recall = len(p.history)
	switch mode {
	case PromptCommand:
		p.SetLabel(":")
		p.SetTitle(" Command ")
	case PromptFilter:
		p.SetLabel("/")
		p.SetTitle(" Filter conversations ")
	}
	p.SetText("")
}

// Edit opens the prompt prefilled with value.
func (p *Prompt) Edit(title, value string) {
	p.mode = PromptEdit
	p.SetLabel("> ")
	p.SetTitle(" " + title + " ")
	p.SetText(value)
}

func (p *Prompt) Mode() PromptMode {
	return p.mode
}

// History returns submitted commands, oldest first.
func (p *Prompt) History() []string {
	return append([]string(nil), p.history...)
}

func (p *Prompt) remember(cmd string) {
	if n := len(p.history); n > 0 && p.history[n-1] == cmd {
		p.recall = n
		return
	}
	p.history = append(p.history, cmd)
	if len(p.history) > historySize {
		p.history = p.history[len(p.history)-historySize:]
	}
	p.recall = len(p.history)
}

// step moves through the history. Walking past the newest entry clears
// the line.
func (p *Prompt) step(delta int) {
	next := p.recall + delta
	if next < 0 || next > len(p.history) {
		return
	}
	p.recall = next
	if next == len(p.history) {
		p.SetText("")
		return
	}
	p.SetText(p.history[next])
}

// complete offers command words for the first word of a command line.
func (p *Prompt) complete(text string) []string {
	if p.mode != PromptCommand || text == "" || strings.Contains(text, " ") {
		return nil
	}
	var out []string
	for _, w := range p.words {
		if strings.HasPrefix(w, text) && w != text {
			out = append(out, w)
		}
	}
	return out
}
