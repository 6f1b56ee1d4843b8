package client

// control_client.go = sends control lines to the hub over OSC.

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/hypebeast/go-osc/osc"

	"nuhub/internal/router"
)

// NewControlMessage addresses a line to a module channel. By default the
// line travels as one string argument and the hub decodes it; typed sends
// every token as its own OSC argument, numbers as float32.
func NewControlMessage(module string, tokens []string, typed bool) *osc.Message {
	msg := osc.NewMessage(router.ChannelName(module))
	if !typed {
		msg.Append(strings.Join(tokens, " "))
		return msg
	}
	for _, tok := range tokens {
		if f, err := strconv.ParseFloat(tok, 32); err == nil {
			msg.Append(float32(f))
			continue
		}
		msg.Append(tok)
	}
	return msg
}

// SendControl delivers msg to the hub OSC address "host:port".
func SendControl(addr string, msg *osc.Message) error {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid OSC address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("invalid OSC port %q: %w", portStr, err)
	}
	return osc.NewClient(host, port).Send(msg)
}
