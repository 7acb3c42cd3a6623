package ui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
)

// Theme holds the dashboard colors.
type Theme struct {
	BgColor           tcell.Color
	FgColor           tcell.Color
	BorderColor       tcell.Color
	TableHeaderFg     tcell.Color
	TableHeaderBg     tcell.Color
	TableCursorFg     tcell.Color
	TableCursorBg     tcell.Color
	CrumbActiveFg     tcell.Color
	CrumbActiveBg     tcell.Color
	CrumbInactiveFg   tcell.Color
	CrumbInactiveBg   tcell.Color
	MenuKeyColor      tcell.Color
	NumericKeyColor   tcell.Color
	TitleColor        tcell.Color
	CounterColor      tcell.Color
	FlashInfoColor    tcell.Color
	FlashWarnColor    tcell.Color
	FlashErrColor     tcell.Color
	PromptBorderColor tcell.Color

	// Message authors and conversation state.
	InboundColor   tcell.Color
	AssistantColor tcell.Color
	FallbackColor  tcell.Color
	OperatorColor  tcell.Color
	UnreadColor    tcell.Color
}

// DefaultTheme returns a dark theme in WhatsApp greens.
func DefaultTheme() *Theme {
	return &Theme{
		BgColor:           tcell.ColorBlack,
		FgColor:           tcell.ColorSilver,
		BorderColor:       tcell.ColorSeaGreen,
		TableHeaderFg:     tcell.ColorWhite,
		TableHeaderBg:     tcell.ColorBlack,
		TableCursorFg:     tcell.ColorBlack,
		TableCursorBg:     tcell.ColorMediumSpringGreen,
		CrumbActiveFg:     tcell.ColorBlack,
		CrumbActiveBg:     tcell.ColorLimeGreen,
		CrumbInactiveFg:   tcell.ColorBlack,
		CrumbInactiveBg:   tcell.ColorDarkSeaGreen,
		MenuKeyColor:      tcell.ColorMediumSpringGreen,
		NumericKeyColor:   tcell.ColorGold,
		TitleColor:        tcell.ColorLimeGreen,
		CounterColor:      tcell.ColorWhite,
		FlashInfoColor:    tcell.ColorPaleGreen,
		FlashWarnColor:    tcell.ColorOrange,
		FlashErrColor:     tcell.ColorOrangeRed,
		PromptBorderColor: tcell.ColorMediumSpringGreen,

		InboundColor:   tcell.ColorWhite,
		AssistantColor: tcell.ColorMediumSpringGreen,
		FallbackColor:  tcell.ColorOrange,
		OperatorColor:  tcell.ColorDeepSkyBlue,
		UnreadColor:    tcell.ColorGold,
	}
}

// ColorName returns the color as a tview style tag value.
func ColorName(c tcell.Color) string {
	return fmt.Sprintf("#%06x", c.Hex())
}
