package wa

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/matheus3301/wppbot/internal/bus"
	"github.com/matheus3301/wppbot/internal/session"
	"github.com/matheus3301/wppbot/internal/store"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	wastore "go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"

	_ "github.com/mattn/go-sqlite3"
)

// DeviceName is shown in the phone's list of linked devices.
const DeviceName = "wppbot"

var (
	ErrNotPaired     = errors.New("no linked device, pair with a QR code first")
	ErrAlreadyPaired = errors.New("device already linked")
)

// Adapter is the daemon's WhatsApp device. It owns the whatsmeow client and
// the per-session device store.
type Adapter struct {
	client *whatsmeow.Client
	bus    *bus.Bus
	logger *zap.Logger
}

// NewAdapter opens the session's device store and builds a client for its
// first device. Nothing connects until Connect.
func NewAdapter(ctx context.Context, layout session.Layout, b *bus.Bus, logger *zap.Logger) (*Adapter, error) {
	wastore.SetOSInfo(DeviceName, [3]uint32{0, 1, 0})

	dsn := fmt.Sprintf("file:%s?_foreign_keys=on", layout.DeviceDB)
	container, err := sqlstore.New(ctx, "sqlite3", dsn, nil)
	if err != nil {
		return nil, fmt.Errorf("open device store: %w", err)
	}
	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("load device: %w", err)
	}

	return &Adapter{
		client: whatsmeow.NewClient(device, nil),
		bus:    b,
		logger: logger.With(zap.String("session", layout.Name)),
	}, nil
}

// IsLoggedIn reports whether the device store holds pairing credentials.
func (a *Adapter) IsLoggedIn() bool {
	return a.client.Store.ID != nil
}

func (a *Adapter) IsConnected() bool {
	return a.client.IsConnected()
}

// Connect opens the websocket. Without credentials it only succeeds as part
// of StartQRAuth.
func (a *Adapter) Connect() error {
	a.logger.Info("connecting to WhatsApp", zap.Bool("paired", a.IsLoggedIn()))
	return a.client.Connect()
}

func (a *Adapter) Disconnect() {
	a.logger.Info("disconnecting from WhatsApp")
	a.client.Disconnect()
}

// Logout unlinks the device on the phone and wipes local credentials.
func (a *Adapter) Logout(ctx context.Context) error {
	if !a.IsLoggedIn() {
		return ErrNotPaired
	}
	a.logger.Info("unlinking device")
	return a.client.Logout(ctx)
}

// RegisterEventHandler subscribes handler to raw whatsmeow events.
func (a *Adapter) RegisterEventHandler(handler whatsmeow.EventHandler) {
	a.client.AddEventHandler(handler)
}

// SendText delivers a reply to a one-to-one chat and returns the server
// message ID used to match later receipts.
func (a *Adapter) SendText(ctx context.Context, jid string, text string) (string, error) {
	to, err := sendTarget(jid)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", errors.New("empty message body")
	}
	if !a.IsLoggedIn() {
		return "", ErrNotPaired
	}
	resp, err := a.client.SendMessage(ctx, to, &waE2E.Message{
		Conversation: proto.String(text),
	})
	if err != nil {
		return "", fmt.Errorf("send to %s: %w", to.User, err)
	}
	a.logger.Debug("message sent", zap.String("to", to.String()), zap.String("id", resp.ID))
	return resp.ID, nil
}

// sendTarget parses a contact JID for sending. Device suffixes are dropped
// and only user chats are accepted.
func sendTarget(jid string) (types.JID, error) {
	to, err := types.ParseJID(jid)
	if err != nil {
		return types.JID{}, fmt.Errorf("parse JID %q: %w", jid, err)
	}
	to = to.ToNonAD()
	if to.User == "" {
		return types.JID{}, fmt.Errorf("JID %q has no user part", jid)
	}
	switch to.Server {
	case types.DefaultUserServer, types.HiddenUserServer:
		return to, nil
	default:
		return types.JID{}, fmt.Errorf("JID %q is not a one-to-one chat", jid)
	}
}

// GetQRChannel returns the pairing channel. It must be taken before Connect.
func (a *Adapter) GetQRChannel(ctx context.Context) (<-chan whatsmeow.QRChannelItem, error) {
	if a.IsLoggedIn() {
		return nil, ErrAlreadyPaired
	}
	ch, err := a.client.GetQRChannel(ctx)
	if err != nil {
		return nil, fmt.Errorf("get QR channel: %w", err)
	}
	return ch, nil
}

// GetContacts lists the address book the phone shared with this device.
func (a *Adapter) GetContacts(ctx context.Context) []store.Contact {
	all, err := a.client.Store.Contacts.GetAllContacts(ctx)
	if err != nil {
		a.logger.Warn("read device contacts", zap.Error(err))
		return nil
	}
	return contactsFrom(all)
}

// contactsFrom keeps user contacts with at least one name, sorted by JID.
func contactsFrom(all map[types.JID]types.ContactInfo) []store.Contact {
	contacts := make([]store.Contact, 0, len(all))
	for jid, info := range all {
		if jid.Server != types.DefaultUserServer {
			continue
		}
		name := info.FullName
		if name == "" {
			name = info.FirstName
		}
		if name == "" {
			name = info.BusinessName
		}
		if name == "" && info.PushName == "" {
			continue
		}
		contacts = append(contacts, store.Contact{
			JID:      jid.ToNonAD().String(),
			Name:     name,
			PushName: info.PushName,
		})
	}
	sort.Slice(contacts, func(i, j int) bool { return contacts[i].JID < contacts[j].JID })
	return contacts
}

// PhoneNumber returns the paired phone number, or "" before pairing.
func (a *Adapter) PhoneNumber() string {
	if a.client.Store.ID == nil {
		return ""
	}
	return a.client.Store.ID.User
}

// ResolveLID maps a hidden-user JID to the phone number JID it stands for.
// Anything else, or a LID the store cannot map, comes back unchanged.
func (a *Adapter) ResolveLID(ctx context.Context, jid types.JID) types.JID {
	if jid.Server != types.HiddenUserServer && jid.Server != types.HostedLIDServer {
		return jid
	}
	if a.client == nil || a.client.Store == nil || a.client.Store.LIDs == nil {
		return jid
	}
	pn, err := a.client.Store.LIDs.GetPNForLID(ctx, jid)
	if err != nil || pn.IsEmpty() {
		return jid
	}
	return pn
}
