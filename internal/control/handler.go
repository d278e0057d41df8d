// Package control drives a running activity from MQTT: status queries,
// pause/resume of the camera and shutdown.
//
// Commands arrive as JSON on <topic>/control and every command is answered
// on <topic>/control/response:
//
//	{"command": "pause"}
//	{"command_ack": "pause", "status": "paused", "timestamp": "..."}
package control

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	CmdGetStatus = "get_status"
	CmdPause     = "pause"
	CmdResume    = "resume"
	CmdShutdown  = "shutdown"
)

// Command is a control plane request.
type Command struct {
	Command string         `json:"command"`
	Params  map[string]any `json:"params,omitempty"`
}

// Response answers one command.
type Response struct {
	CommandAck string         `json:"command_ack"`
	Status     string         `json:"status"`
	Data       map[string]any `json:"data,omitempty"`
	Error      string         `json:"error,omitempty"`
	Timestamp  string         `json:"timestamp"`
}

// Callbacks connect commands to the application. A nil callback answers
// "not implemented".
type Callbacks struct {
	OnGetStatus func() map[string]any
	OnPause     func() error
	OnResume    func() error
	OnShutdown  func() error
}

// ControlTopic is where commands for base are received.
func ControlTopic(base string) string {
	return strings.TrimSuffix(base, "/") + "/control"
}

// ResponseTopic is where command responses for base are published.
func ResponseTopic(base string) string {
	return ControlTopic(base) + "/response"
}

// Handler subscribes to the control topic and runs commands one at a time.
type Handler struct {
	client    mqtt.Client
	base      string
	qos       byte
	callbacks Callbacks
	commands  chan Command

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	handled uint64
}

// NewHandler creates a handler for the topics under base.
func NewHandler(client mqtt.Client, base string, qos byte, callbacks Callbacks) *Handler {
	return &Handler{
		client:    client,
		base:      base,
		qos:       qos,
		callbacks: callbacks,
		commands:  make(chan Command, 10),
	}
}

// Start subscribes and begins processing commands until ctx is done or Stop.
func (h *Handler) Start(ctx context.Context) error {
	topic := ControlTopic(h.base)
	slog.Info("control: subscribing", "topic", topic, "qos", h.qos)

	token := h.client.Subscribe(topic, h.qos, h.messageHandler)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("control: subscription timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("control: subscription failed: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	h.mu.Lock()
	h.cancel = cancel
	h.mu.Unlock()

	h.wg.Add(1)
	go h.processCommands(runCtx)

	slog.Info("control: handler started")
	return nil
}

// Stop unsubscribes and waits for the command in progress.
func (h *Handler) Stop() error {
	h.mu.Lock()
	cancel := h.cancel
	h.cancel = nil
	h.mu.Unlock()

	if cancel == nil {
		return nil
	}
	if h.client.IsConnected() {
		h.client.Unsubscribe(ControlTopic(h.base)).WaitTimeout(2 * time.Second)
	}
	cancel()
	h.wg.Wait()

	slog.Info("control: handler stopped")
	return nil
}

// messageHandler runs on the paho callback goroutine and must not block.
func (h *Handler) messageHandler(_ mqtt.Client, msg mqtt.Message) {
	var cmd Command
	if err := json.Unmarshal(msg.Payload(), &cmd); err != nil {
		slog.Error("control: failed to parse command", "error", err)
		h.sendResponse(Response{CommandAck: "unknown", Status: "error", Error: "invalid JSON"})
		return
	}

	slog.Info("control: command received", "command", cmd.Command)

	select {
	case h.commands <- cmd:
	default:
		slog.Warn("control: command queue full, dropping command", "command", cmd.Command)
	}
}

func (h *Handler) processCommands(ctx context.Context) {
	defer h.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-h.commands:
			h.sendResponse(h.Handle(cmd))
		}
	}
}

// Handle executes cmd and returns its response.
func (h *Handler) Handle(cmd Command) Response {
	resp := Response{CommandAck: cmd.Command}

	run := func(fn func() error, status string) {
		if fn == nil {
			resp.Status, resp.Error = "error", cmd.Command+" not implemented"
			return
		}
		if err := fn(); err != nil {
			resp.Status, resp.Error = "error", err.Error()
			return
		}
		resp.Status = status
	}

	switch cmd.Command {
	case CmdGetStatus:
		if h.callbacks.OnGetStatus == nil {
			resp.Status, resp.Error = "error", "get_status not implemented"
			break
		}
		resp.Status = "success"
		resp.Data = h.callbacks.OnGetStatus()
	case CmdPause:
		run(h.callbacks.OnPause, "paused")
	case CmdResume:
		run(h.callbacks.OnResume, "running")
	case CmdShutdown:
		run(h.callbacks.OnShutdown, "shutting_down")
	default:
		resp.Status = "error"
		resp.Error = fmt.Sprintf("unknown command: %s", cmd.Command)
	}

	h.mu.Lock()
	h.handled++
	h.mu.Unlock()

	if resp.Error != "" {
		slog.Warn("control: command failed", "command", cmd.Command, "error", resp.Error)
	}
	return resp
}

// Handled counts executed commands.
func (h *Handler) Handled() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.handled
}

func (h *Handler) sendResponse(resp Response) {
	resp.Timestamp = time.Now().UTC().Format(time.RFC3339)

	payload, err := json.Marshal(resp)
	if err != nil {
		slog.Error("control: failed to marshal response", "error", err)
		return
	}
	if !h.client.IsConnected() {
		slog.Debug("control: response not sent, mqtt disconnected", "command", resp.CommandAck)
		return
	}
	token := h.client.Publish(ResponseTopic(h.base), h.qos, false, payload)
	if !token.WaitTimeout(2 * time.Second) {
		slog.Warn("control: response publish timeout", "command", resp.CommandAck)
	}
}
