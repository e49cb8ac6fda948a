// Package main is a trigger plugin that turns pattern edges into OSC
// note and controller messages.
//
// Action "note" sends /note/on [channel note velocity] on start and
// /note/off [channel note 0] on stop. Action "cc" sends /cc [channel cc value]
// on start and /cc [channel cc 0] on stop.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/hypebeast/go-osc/osc"
)

// Request represents the input from the plugin executor.
type Request struct {
	Action  string          `json:"action"`
	Pattern string          `json:"pattern"`
	Edge    string          `json:"edge"`
	Config  json.RawMessage `json:"config"`
	Params  json.RawMessage `json:"params"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Config addresses the receiver and picks the message content.
type Config struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Channel  int32  `json:"channel"`
	Note     int32  `json:"note"`
	Velocity int32  `json:"velocity"`
	CC       int32  `json:"cc"`
	Value    int32  `json:"value"`
}

func defaultConfig() Config {
	return Config{
		Host:     "127.0.0.1",
		Port:     57120,
		Channel:  1,
		Note:     60,
		Velocity: 100,
		CC:       1,
		Value:    127,
	}
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeResponse(fmt.Errorf("failed to decode request: %w", err))
		return
	}

	cfg := defaultConfig()
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			writeResponse(fmt.Errorf("failed to parse config: %w", err))
			return
		}
	}

	msg, err := buildMessage(req.Action, req.Edge, cfg)
	if err != nil {
		writeResponse(err)
		return
	}

	writeResponse(osc.NewClient(cfg.Host, cfg.Port).Send(msg))
}

// buildMessage maps an action and edge to the OSC message to send.
func buildMessage(action, edge string, cfg Config) (*osc.Message, error) {
	start := edge == "start"
	if !start && edge != "stop" {
		return nil, fmt.Errorf("unknown edge: %q", edge)
	}

	switch action {
	case "note":
		if start {
			return osc.NewMessage("/note/on", cfg.Channel, cfg.Note, cfg.Velocity), nil
		}
		return osc.NewMessage("/note/off", cfg.Channel, cfg.Note, int32(0)), nil
	case "cc":
		value := cfg.Value
		if !start {
			value = 0
		}
		return osc.NewMessage("/cc", cfg.Channel, cfg.CC, value), nil
	default:
		return nil, fmt.Errorf("unknown action: %s", action)
	}
}

func writeResponse(err error) {
	resp := Response{Success: err == nil}
	if err != nil {
		resp.Error = err.Error()
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}
