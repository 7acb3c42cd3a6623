package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/matheus3301/wppbot/internal/rpc"
)

// Command represents a parsed command.
type Command struct {
	Name string
	Args string
}

// CommandNames lists the full command words offered for completion.
var CommandNames = []string{
	"chat", "clear", "connect", "disconnect", "fallback", "help", "logout",
	"model", "profile", "prompt", "quit", "reply", "stats", "temperature",
	"tokens", "window",
}

// ParseCommand parses a command string (without the leading ':').
func ParseCommand(input string) Command {
	input = strings.TrimSpace(input)
	parts := strings.SplitN(input, " ", 2)
	cmd := Command{Name: strings.ToLower(parts[0])}
	if len(parts) > 1 {
		cmd.Args = strings.TrimSpace(parts[1])
	}
	return cmd
}

// ParameterUpdate converts an assistant parameter command into an update
// request. ok is false when the command does not name a parameter.
func ParameterUpdate(cmd Command) (req *rpc.UpdateParametersRequest, ok bool, err error) {
	req = &rpc.UpdateParametersRequest{}
	switch cmd.Name {
	case "temp", "temperature":
		v, err := strconv.ParseFloat(cmd.Args, 64)
		if err != nil {
			return nil, true, fmt.Errorf("temperature must be a number, got %q", cmd.Args)
		}
		req.Temperature = &v
	case "tokens", "max_tokens":
		v, err := strconv.Atoi(cmd.Args)
		if err != nil {
			return nil, true, fmt.Errorf("max tokens must be an integer, got %q", cmd.Args)
		}
		req.MaxTokens = &v
	case "window":
		v, err := strconv.Atoi(cmd.Args)
		if err != nil {
			return nil, true, fmt.Errorf("window size must be an integer, got %q", cmd.Args)
		}
		req.WindowSize = &v
	case "model":
		if cmd.Args == "" {
			return nil, true, fmt.Errorf("model name is required")
		}
		v := cmd.Args
		req.Model = &v
	case "fallback":
		if cmd.Args == "" {
			return nil, true, fmt.Errorf("fallback message is required")
		}
		v := cmd.Args
		req.FallbackMessage = &v
	default:
		return nil, false, nil
	}
	return req, true, nil
}
