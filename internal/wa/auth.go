package wa

import (
	"context"
	"fmt"
	"time"

	"github.com/matheus3301/wppbot/internal/bus"
	"go.mau.fi/whatsmeow"
	"go.uber.org/zap"
)

// AuthEventType enumerates pairing events streamed to operators.
type AuthEventType string

const (
	AuthEventQRCode        AuthEventType = "qr_code"
	AuthEventAuthenticated AuthEventType = "authenticated"
	AuthEventAuthFailed    AuthEventType = "auth_failed"
	AuthEventTimeout       AuthEventType = "timeout"
)

// AuthEvent is one step of the device pairing flow.
type AuthEvent struct {
	Type    AuthEventType
	QRCode  string
	Message string
}

// Terminal reports whether the pairing flow ends with this event.
func (e AuthEvent) Terminal() bool {
	return e.Type != AuthEventQRCode
}

var pairingFailures = map[string]string{
	"err-client-outdated":             "WhatsApp rejected this client version, update wppbot",
	"err-scanned-without-multidevice": "the phone scanned the code without multi-device support",
	"err-unexpected-state":            "pairing ended in an unexpected state, try again",
}

// authEventFor converts a whatsmeow QR channel item. It returns false for
// items that carry nothing an operator can act on.
func authEventFor(item whatsmeow.QRChannelItem) (AuthEvent, bool) {
	switch item.Event {
	case "code":
		msg := "scan with WhatsApp > Linked devices"
		if item.Timeout > 0 {
			msg = fmt.Sprintf("%s, expires in %s", msg, item.Timeout.Round(time.Second))
		}
		return AuthEvent{Type: AuthEventQRCode, QRCode: item.Code, Message: msg}, true
	case "success":
		return AuthEvent{Type: AuthEventAuthenticated, Message: "device linked"}, true
	case "timeout":
		return AuthEvent{Type: AuthEventTimeout, Message: "no QR code was scanned in time"}, true
	}
	if msg, ok := pairingFailures[item.Event]; ok {
		return AuthEvent{Type: AuthEventAuthFailed, Message: msg}, true
	}
	if item.Error != nil {
		return AuthEvent{Type: AuthEventAuthFailed, Message: item.Error.Error()}, true
	}
	return AuthEvent{}, false
}

// StartQRAuth links this daemon as a WhatsApp device. Events are streamed on
// the returned channel, which closes after the first terminal event or when
// ctx ends. Every event is mirrored on the bus under session.*.
func (a *Adapter) StartQRAuth(ctx context.Context) (<-chan AuthEvent, error) {
	qrChan, err := a.GetQRChannel(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan AuthEvent, 4)
	go func() {
		defer close(out)

		emit := func(evt AuthEvent) {
			a.publishAuth(evt)
			select {
			case out <- evt:
			case <-ctx.Done():
			}
		}

		// whatsmeow requires the QR channel before Connect.
		if err := a.Connect(); err != nil {
			emit(AuthEvent{Type: AuthEventAuthFailed, Message: err.Error()})
			return
		}

		for item := range qrChan {
			evt, ok := authEventFor(item)
			if !ok {
				a.logger.Debug("ignoring pairing event", zap.String("event", item.Event))
				continue
			}
			emit(evt)
			if evt.Terminal() {
				return
			}
		}
	}()

	return out, nil
}

func (a *Adapter) publishAuth(evt AuthEvent) {
	kind := bus.KindSessionAuthFailed
	var payload any = evt.Message
	switch evt.Type {
	case AuthEventQRCode:
		kind, payload = bus.KindSessionQRGenerated, evt.QRCode
	case AuthEventAuthenticated:
		kind, payload = bus.KindSessionAuthenticated, nil
	default:
		a.logger.Warn("pairing failed", zap.String("reason", evt.Message))
	}
	a.bus.Publish(bus.Event{Kind: kind, Timestamp: time.Now(), Payload: payload})
}
