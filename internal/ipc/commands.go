package ipc

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/tutu-network/aigov/internal/domain"
)

// Controller is the slice of governor state the command handler needs.
// resource.State satisfies it.
type Controller interface {
	Snapshot() domain.Snapshot
	SetMode(m domain.Mode) domain.Mode
	RequestTrigger() bool
}

// Replies.
const (
	ReplyTriggered      = "OK INFERENCE TRIGGERED\n"
	ReplyUnknownCommand = "ERROR UNKNOWN COMMAND\n"
)

// Command names used for metrics and journal entries.
const (
	CommandStatus   = "STATUS"
	CommandSetMode  = "SET_MODE"
	CommandRunInfer = "RUN_INFER"
	CommandUnknown  = "UNKNOWN"
)

type command struct {
	prefix []byte
	name   string
	run    func(ctrl Controller) string
}

// commands is matched in order against the start of the request. Order
// matters only in that every prefix is distinct.
var commands = []command{
	{prefix: []byte("STATUS"), name: CommandStatus, run: statusCommand},
	{prefix: []byte("SET_MODE AUTO"), name: CommandSetMode, run: setModeCommand(domain.ModeAuto)},
	{prefix: []byte("SET_MODE FULL"), name: CommandSetMode, run: setModeCommand(domain.ModeFull)},
	{prefix: []byte("SET_MODE LIMITED"), name: CommandSetMode, run: setModeCommand(domain.ModeLimited)},
	{prefix: []byte("SET_MODE OFF"), name: CommandSetMode, run: setModeCommand(domain.ModeOff)},
	{prefix: []byte("RUN_INFER"), name: CommandRunInfer, run: runInferCommand},
}

// Dispatch executes the command at the start of raw and returns the reply
// plus the command name. Matching is case-sensitive and ignores trailing
// bytes; anything unrecognized, including an empty request, gets the
// unknown-command reply.
func Dispatch(ctrl Controller, raw []byte) (reply, name string) {
	for _, c := range commands {
		if bytes.HasPrefix(raw, c.prefix) {
			return c.run(ctrl), c.name
		}
	}
	return ReplyUnknownCommand, CommandUnknown
}

func statusCommand(ctrl Controller) string {
	return FormatStatus(ctrl.Snapshot())
}

func setModeCommand(m domain.Mode) func(Controller) string {
	reply := "OK MODE " + m.String() + "\n"
	return func(ctrl Controller) string {
		ctrl.SetMode(m)
		return reply
	}
}

func runInferCommand(ctrl Controller) string {
	ctrl.RequestTrigger()
	return ReplyTriggered
}

// FormatStatus renders the STATUS reply. Floats carry six decimals.
func FormatStatus(s domain.Snapshot) string {
	return fmt.Sprintf("TEMP=%f CPU=%f MODE=%d\n", s.TemperatureC, s.CPULoadPercent, int(s.Mode))
}

// ParseStatus is the inverse of FormatStatus, used by the CLI client.
// PendingTrigger is not on the wire and is always false.
func ParseStatus(reply string) (domain.Snapshot, error) {
	var s domain.Snapshot
	fields := strings.Fields(reply)
	if len(fields) != 3 {
		return s, fmt.Errorf("%w: %q", domain.ErrMalformedReply, reply)
	}

	seen := 0
	for _, f := range fields {
		key, val, ok := strings.Cut(f, "=")
		if !ok {
			return s, fmt.Errorf("%w: field %q", domain.ErrMalformedReply, f)
		}
		var err error
		switch key {
		case "TEMP":
			s.TemperatureC, err = strconv.ParseFloat(val, 64)
		case "CPU":
			s.CPULoadPercent, err = strconv.ParseFloat(val, 64)
		case "MODE":
			var m int
			m, err = strconv.Atoi(val)
			s.Mode = domain.Mode(m)
		default:
			return s, fmt.Errorf("%w: unexpected key %q", domain.ErrMalformedReply, key)
		}
		if err != nil {
			return s, fmt.Errorf("%w: %s: %v", domain.ErrMalformedReply, key, err)
		}
		seen++
	}
	if seen != 3 {
		return s, fmt.Errorf("%w: %q", domain.ErrMalformedReply, reply)
	}
	return s, nil
}
