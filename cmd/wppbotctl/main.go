package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/matheus3301/wppbot/internal/lock"
	"github.com/matheus3301/wppbot/internal/rpc"
	"github.com/matheus3301/wppbot/internal/session"
	qrcode "github.com/skip2/go-qrcode"
)

func main() {
	sessionFlag := flag.String("session", "", "session name (overrides config default)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	flag.Usage = printUsage
	flag.Parse()

	sessionName := session.Resolve(*sessionFlag)
	if err := session.ValidateName(sessionName); err != nil {
		fail(err)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	if args[0] == "sessions" {
		cmdSessions(*jsonFlag)
		return
	}

	c, err := rpc.Dial(session.For(sessionName).Socket)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: cannot connect to daemon for session %q: %v\n", sessionName, err)
		os.Exit(1)
	}
	defer func() { _ = c.Close() }()

	// Streaming commands run until interrupted; everything else gets a deadline.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if args[0] != "auth" && args[0] != "watch" {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
	}

	out := printer{json: *jsonFlag}
	rest := args[1:]
	switch args[0] {
	case "status":
		cmdStatus(ctx, c, out)
	case "auth":
		cmdAuth(ctx, c)
	case "connect":
		out.action(c.Session.Connect(ctx, &rpc.ConnectRequest{}))
	case "disconnect":
		out.action(c.Session.Disconnect(ctx, &rpc.DisconnectRequest{}))
	case "logout":
		out.action(c.Session.Logout(ctx, &rpc.LogoutRequest{}))
	case "list":
		cmdList(ctx, c, out, rest)
	case "show":
		need(rest, 1, "show <contact> [limit]")
		cmdShow(ctx, c, out, rest)
	case "send":
		need(rest, 2, "send <contact> <text...>")
		cmdSend(ctx, c, out, rest[0], strings.Join(rest[1:], " "))
	case "clear":
		need(rest, 1, "clear <contact>")
		cmdClear(ctx, c, out, rest[0])
	case "reply":
		need(rest, 1, "reply <contact>")
		cmdReply(ctx, c, out, rest[0])
	case "stats":
		cmdStats(ctx, c, out)
	case "digests":
		cmdDigests(ctx, c, out, rest)
	case "profile":
		cmdProfile(ctx, c, out)
	case "prompt":
		need(rest, 1, "prompt <text...>")
		resp, err := c.Assistant.UpdatePrompt(ctx, &rpc.UpdatePromptRequest{SystemPrompt: strings.Join(rest, " ")})
		out.profile(resp, err)
	case "params":
		cmdParams(ctx, c, out, rest)
	case "watch":
		cmdWatch(ctx, c, out, rest)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: wppbotctl [--session <name>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  status                       Show session status")
	fmt.Fprintln(os.Stderr, "  auth                         Pair this device by scanning a QR code")
	fmt.Fprintln(os.Stderr, "  connect | disconnect         Toggle the WhatsApp connection")
	fmt.Fprintln(os.Stderr, "  logout                       Unlink this device")
	fmt.Fprintln(os.Stderr, "  sessions                     List known sessions")
	fmt.Fprintln(os.Stderr, "  list [limit]                 List conversations, most recent first")
	fmt.Fprintln(os.Stderr, "  show <contact> [limit]       Show a conversation and mark it read")
	fmt.Fprintln(os.Stderr, "  send <contact> <text>        Send a message as the operator")
	fmt.Fprintln(os.Stderr, "  clear <contact>              Clear the assistant's history for a contact")
	fmt.Fprintln(os.Stderr, "  reply <contact>              Ask the assistant to answer now")
	fmt.Fprintln(os.Stderr, "  stats                        Show live statistics")
	fmt.Fprintln(os.Stderr, "  digests [limit]              Show recorded statistics digests")
	fmt.Fprintln(os.Stderr, "  profile                      Show the assistant profile")
	fmt.Fprintln(os.Stderr, "  prompt <text>                Replace the system prompt")
	fmt.Fprintln(os.Stderr, "  params key=value...          Update model, temperature, max_tokens, window, fallback")
	fmt.Fprintln(os.Stderr, "  watch [prefix]               Stream daemon events")
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

func need(args []string, n int, usage string) {
	if len(args) < n {
		fmt.Fprintf(os.Stderr, "usage: wppbotctl %s\n", usage)
		os.Exit(1)
	}
}

func optionalLimit(args []string) int {
	if len(args) == 0 {
		return 0
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 0 {
		fail(fmt.Errorf("limit must be a non-negative integer, got %q", args[0]))
	}
	return n
}

type printer struct {
	json bool
}

func (p printer) action(resp *rpc.SessionActionResponse, err error) {
	if err != nil {
		fail(err)
	}
	if p.json {
		outputJSON(resp)
		return
	}
	fmt.Println(resp.Message)
}

func (p printer) profile(resp *rpc.ProfileResponse, err error) {
	if err != nil {
		fail(err)
	}
	if p.json {
		outputJSON(resp.Profile)
		return
	}
	pr := resp.Profile
	fmt.Printf("Provider:    %s\n", pr.Provider)
	fmt.Printf("Model:       %s\n", pr.Model)
	fmt.Printf("Temperature: %.2f\n", pr.Temperature)
	fmt.Printf("Max tokens:  %d\n", pr.MaxTokens)
	fmt.Printf("Window:      %d turns\n", pr.WindowSize)
	fmt.Printf("Fallback:    %s\n", pr.FallbackMessage)
	fmt.Printf("Prompt:\n%s\n", pr.SystemPrompt)
}

func cmdStatus(ctx context.Context, c *rpc.Client, p printer) {
	resp, err := c.Session.GetSessionStatus(ctx, &rpc.GetSessionStatusRequest{})
	if err != nil {
		fail(err)
	}
	if p.json {
		outputJSON(resp)
		return
	}
	fmt.Printf("Session:       %s\n", resp.Session)
	fmt.Printf("Status:        %s (since %s)\n", resp.Status, time.UnixMilli(resp.StatusSinceUnixMs).Format(time.RFC3339))
	if resp.PhoneNumber != "" {
		fmt.Printf("Phone:         %s\n", resp.PhoneNumber)
	}
	fmt.Printf("Auto reply:    %v\n", resp.AutoReply)
	fmt.Printf("Conversations: %d\n", resp.ConversationCount)
	fmt.Printf("Messages:      %d\n", resp.MessageCount)
	fmt.Printf("Uptime:        %s\n", (time.Duration(resp.UptimeMs) * time.Millisecond).Round(time.Second))
}

// cmdAuth streams pairing QR codes to the terminal until the device is
// linked or pairing fails.
func cmdAuth(ctx context.Context, c *rpc.Client) {
	stream, err := c.Session.StartAuth(ctx, &rpc.StartAuthRequest{})
	if err != nil {
		fail(err)
	}
	for {
		evt, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			fail(err)
		}
		switch evt.Type {
		case "qr_code":
			qr, err := qrcode.New(evt.QRCode, qrcode.Low)
			if err != nil {
				fail(fmt.Errorf("render QR code: %w", err))
			}
			fmt.Print("\033[H\033[2J")
			fmt.Println("Scan this QR code with WhatsApp (Linked devices > Link a device):")
			fmt.Println(qr.ToSmallString(false))
		case "authenticated":
			fmt.Println("Device linked.")
			return
		case "auth_failed", "timeout":
			fail(errors.New(evt.Message))
		}
	}
}

func cmdList(ctx context.Context, c *rpc.Client, p printer, args []string) {
	resp, err := c.Inbox.ListConversations(ctx, &rpc.ListConversationsRequest{Limit: optionalLimit(args)})
	if err != nil {
		fail(err)
	}
	if p.json {
		outputJSON(resp)
		return
	}
	if len(resp.Conversations) == 0 {
		fmt.Println("No conversations yet.")
		return
	}
	for _, conv := range resp.Conversations {
		name := conv.DisplayName
		if name == "" {
			name = conv.Contact
		}
		unread := ""
		if conv.UnreadCount > 0 {
			unread = fmt.Sprintf(" (%d unread)", conv.UnreadCount)
		}
		fmt.Printf("%-16s %-32s %s%s\n",
			time.UnixMilli(conv.LastActivityUnixMs).Format("2006-01-02 15:04"),
			name, conv.LastMessageSummary, unread)
	}
}

func cmdShow(ctx context.Context, c *rpc.Client, p printer, args []string) {
	resp, err := c.Inbox.GetConversation(ctx, &rpc.GetConversationRequest{Contact: args[0], Limit: optionalLimit(args[1:])})
	if err != nil {
		fail(err)
	}
	if p.json {
		outputJSON(resp)
		return
	}
	fmt.Printf("%s (%d messages, %d in assistant context)\n\n", resp.Conversation.Contact, resp.Conversation.MessageCount, resp.WindowTurns)
	for _, m := range resp.Messages {
		who := "them"
		if m.Direction == "outbound" {
			who = m.Origin
		}
		fmt.Printf("[%s] %-9s %s  (%s)\n", time.UnixMilli(m.TimestampUnixMs).Format("15:04"), who, m.Body, m.Status)
	}
}

func cmdSend(ctx context.Context, c *rpc.Client, p printer, contact, text string) {
	resp, err := c.Inbox.SendText(ctx, &rpc.SendTextRequest{Contact: contact, Text: text})
	if err != nil {
		fail(err)
	}
	if p.json {
		outputJSON(resp.Message)
		return
	}
	fmt.Printf("Queued %s (%s)\n", resp.Message.ID, resp.Message.Status)
}

func cmdClear(ctx context.Context, c *rpc.Client, p printer, contact string) {
	resp, err := c.Inbox.ClearHistory(ctx, &rpc.ClearHistoryRequest{Contact: contact})
	if err != nil {
		fail(err)
	}
	if p.json {
		outputJSON(resp)
		return
	}
	if resp.Cleared {
		fmt.Println("Assistant history cleared.")
	} else {
		fmt.Println("No assistant history for this contact.")
	}
}

func cmdReply(ctx context.Context, c *rpc.Client, p printer, contact string) {
	resp, err := c.Assistant.Reply(ctx, &rpc.ReplyRequest{Contact: contact})
	if err != nil {
		fail(err)
	}
	if p.json {
		outputJSON(resp.Message)
		return
	}
	fmt.Printf("%s reply queued: %s\n", resp.Message.Origin, resp.Message.Body)
}

func printStats(s rpc.Stats) {
	fmt.Printf("Total messages:       %d\n", s.TotalMessages)
	fmt.Printf("Incoming:             %d\n", s.IncomingMessages)
	fmt.Printf("Outgoing:             %d\n", s.OutgoingMessages)
	fmt.Printf("Active conversations: %d\n", s.ActiveConversations)
	fmt.Printf("Unread:               %d\n", s.UnreadMessages)
	fmt.Printf("Response rate:        %d%%\n", s.ResponseRate)
	fmt.Printf("Average response:     %s\n", s.AverageResponse)
}

func cmdStats(ctx context.Context, c *rpc.Client, p printer) {
	resp, err := c.Inbox.GetStats(ctx, &rpc.GetStatsRequest{})
	if err != nil {
		fail(err)
	}
	if p.json {
		outputJSON(resp)
		return
	}
	printStats(resp.Stats)
}

func cmdDigests(ctx context.Context, c *rpc.Client, p printer, args []string) {
	resp, err := c.Inbox.ListDigests(ctx, &rpc.ListDigestsRequest{Limit: optionalLimit(args)})
	if err != nil {
		fail(err)
	}
	if p.json {
		outputJSON(resp)
		return
	}
	if len(resp.Digests) == 0 {
		fmt.Println("No digests recorded yet.")
		return
	}
	for i, d := range resp.Digests {
		if i > 0 {
			fmt.Println()
		}
		fmt.Printf("== %s ==\n", time.UnixMilli(d.TakenAtUnixMs).Format(time.RFC3339))
		printStats(d.Stats)
	}
}

func cmdProfile(ctx context.Context, c *rpc.Client, p printer) {
	p.profile(c.Assistant.GetProfile(ctx, &rpc.GetProfileRequest{}))
}

// cmdParams applies key=value assistant parameter updates.
func cmdParams(ctx context.Context, c *rpc.Client, p printer, args []string) {
	need(args, 1, "params key=value...")
	req, err := parseParams(args)
	if err != nil {
		fail(err)
	}
	p.profile(c.Assistant.UpdateParameters(ctx, req))
}

func parseParams(args []string) (*rpc.UpdateParametersRequest, error) {
	req := &rpc.UpdateParametersRequest{}
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("expected key=value, got %q", arg)
		}
		switch key {
		case "model":
			req.Model = &value
		case "fallback":
			req.FallbackMessage = &value
		case "temperature":
			v, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return nil, fmt.Errorf("temperature: %w", err)
			}
			req.Temperature = &v
		case "max_tokens":
			v, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("max_tokens: %w", err)
			}
			req.MaxTokens = &v
		case "window":
			v, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("window: %w", err)
			}
			req.WindowSize = &v
		default:
			return nil, fmt.Errorf("unknown parameter %q", key)
		}
	}
	return req, nil
}

func cmdWatch(ctx context.Context, c *rpc.Client, p printer, args []string) {
	prefix := ""
	if len(args) > 0 {
		prefix = args[0]
	}
	stream, err := c.Inbox.WatchEvents(ctx, &rpc.WatchEventsRequest{Prefix: prefix})
	if err != nil {
		fail(err)
	}
	for {
		evt, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return
			}
			fail(err)
		}
		if p.json {
			outputJSON(evt)
			continue
		}
		line := fmt.Sprintf("%s %-24s", time.UnixMilli(evt.OccurredAtUnixMs).Format("15:04:05"), evt.Kind)
		if evt.Message != nil {
			line += fmt.Sprintf(" %s %s: %s", evt.Message.Contact, evt.Message.Status, evt.Message.Body)
		} else if evt.Detail != "" {
			line += " " + evt.Detail
		}
		fmt.Println(line)
	}
}

// cmdSessions lists session directories and whether their daemon socket
// accepts requests.
func cmdSessions(jsonOut bool) {
	names, err := session.List()
	if err != nil {
		fail(err)
	}
	type sessionInfo struct {
		Name    string    `json:"name"`
		Path    string    `json:"path"`
		Running bool      `json:"daemon_running"`
		PID     int       `json:"pid,omitempty"`
		Since   time.Time `json:"since,omitempty"`
	}
	sessions := make([]sessionInfo, 0, len(names))
	for _, name := range names {
		l := session.For(name)
		info := sessionInfo{Name: name, Path: l.Dir}
		// The daemon holds the lock for its whole life.
		if h, err := lock.Inspect(l.Lock); err == nil && h != nil {
			info.Running, info.PID, info.Since = true, h.PID, h.Started
		}
		sessions = append(sessions, info)
	}
	if jsonOut {
		outputJSON(sessions)
		return
	}
	if len(sessions) == 0 {
		fmt.Println("No sessions found.")
		return
	}
	for _, s := range sessions {
		state := "stopped"
		if s.Running {
			state = fmt.Sprintf("running, PID %d since %s", s.PID, s.Since.Local().Format(time.DateTime))
		}
		fmt.Printf("%-20s %s (%s)\n", s.Name, s.Path, state)
	}
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
	}
}
