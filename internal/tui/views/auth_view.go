package views

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/wppbot/internal/rpc"
	"github.com/matheus3301/wppbot/internal/tui/ui"
	"github.com/rivo/tview"
	qrcode "github.com/skip2/go-qrcode"
)

// AuthView walks the operator through linking the bot's WhatsApp device.
type AuthView struct {
	*tview.TextView
	theme *ui.Theme
	codes int
}

// NewAuthView creates a new auth view.
func NewAuthView(theme *ui.Theme) *AuthView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Link Device ")
	tv.SetTitleColor(theme.TitleColor)

	return &AuthView{
		TextView: tv,
		theme:    theme,
	}
}

// Name implements Component.
func (av *AuthView) Name() string { return "Auth" }

// Init implements Component.
func (av *AuthView) Init() {}

// Start implements Component.
func (av *AuthView) Start() { av.codes = 0 }

// Stop implements Component.
func (av *AuthView) Stop() {}

// Hints implements Component.
func (av *AuthView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Esc", Description: "Back"},
		{Key: ":", Description: "Command"},
	}
}

// Show renders one event of the pairing stream and reports whether the
// stream has finished.
func (av *AuthView) Show(evt *rpc.AuthEvent) (done bool) {
	switch evt.Type {
	case "qr_code":
		av.codes++
		av.showQR(evt.QRCode)
		return false
	case "authenticated":
		av.showResult(av.theme.FlashInfoColor, "Device linked. Loading conversations...")
	default:
		msg := evt.Message
		if msg == "" {
			msg = "Pairing failed"
		}
		av.showResult(av.theme.FlashErrColor, msg+"\n\nPress Esc, then run :connect to try again.")
	}
	av.codes = 0
	return true
}

func (av *AuthView) showQR(content string) {
	av.Clear()
	_, _ = fmt.Fprintf(av,
		"\n  Open WhatsApp on the bot's phone: Settings > Linked devices > Link a device\n\n%s\n  [::d]Code %d refreshes automatically. Waiting for scan...[-:-:-]",
		renderQR(content), av.codes)
}

func (av *AuthView) showResult(color tcell.Color, msg string) {
	av.Clear()
	_, _ = fmt.Fprintf(av, "\n\n[%s::b]%s[-:-:-]", ui.ColorName(color), tview.Escape(msg))
}

// ShowMessage displays a neutral status message.
func (av *AuthView) ShowMessage(msg string) {
	av.Clear()
	_, _ = fmt.Fprintf(av, "\n\n%s", tview.Escape(msg))
}

// halfBlocks maps a (top, bottom) module pair to the glyph that draws both
// in one terminal cell.
var halfBlocks = [2][2]rune{
	{' ', '▄'},
	{'▀', '█'},
}

// renderQR draws content as a QR code two modules per character row.
func renderQR(content string) string {
	qr, err := qrcode.New(content, qrcode.Low)
	if err != nil {
		return "  (QR generation failed: " + err.Error() + ")"
	}
	bitmap := qr.Bitmap()

	var sb strings.Builder
	for y := 0; y < len(bitmap); y += 2 {
		sb.WriteString("  ")
		for x := range bitmap[y] {
			top, bottom := 0, 0
			if bitmap[y][x] {
				top = 1
			}
			if y+1 < len(bitmap) && bitmap[y+1][x] {
				bottom = 1
			}
			sb.WriteRune(halfBlocks[top][bottom])
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
