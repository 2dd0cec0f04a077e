// Package control implements the mcud daemon's MQTT control-plane
// listener: a thin scripting bridge that receives activateInput /
// deActivateInput / setAvatar / unsetAvatar / updateLayoutSolution /
// drawText / clearText commands as JSON messages and republishes
// acknowledgements over a status topic.
package control

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/visiona/mcu/internal/config"
)

// Command is one control-plane request.
type Command struct {
	Command string                 `json:"command"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// Response acknowledges a Command.
type Response struct {
	CommandAck string                 `json:"command_ack"`
	Status     string                 `json:"status"`
	Data       map[string]interface{} `json:"data,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Timestamp  int64                  `json:"timestamp"`
}

// Callbacks wires control-plane commands to Compositor operations. Any
// nil field makes the corresponding command respond with an
// "not implemented" error rather than panicking.
type Callbacks struct {
	OnActivateInput        func(index int) error
	OnDeActivateInput      func(index int) error
	OnSetAvatar            func(index int, url string) error
	OnUnsetAvatar          func(index int) error
	OnUpdateLayoutSolution func(raw json.RawMessage) error
	OnDrawText             func(message string) error
	OnClearText            func() error
	OnGetStatus            func() map[string]interface{}
}

// Handler subscribes to the configured control topic and dispatches
// each decoded Command to Callbacks, publishing a Response to the
// status topic for every command it dispatches and for every malformed
// payload. A command dropped because the queue is full gets no Response.
type Handler struct {
	cfg       *config.Config
	client    mqtt.Client
	callbacks Callbacks
	log       *slog.Logger

	commands chan Command

	nowMillis func() int64
}

// NewHandler creates a control-plane Handler bound to an already
// constructed MQTT client (see Connect for building one).
func NewHandler(cfg *config.Config, client mqtt.Client, callbacks Callbacks, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		cfg:       cfg,
		client:    client,
		callbacks: callbacks,
		log:       log,
		commands:  make(chan Command, 16),
		nowMillis: func() int64 { return time.Now().UnixMilli() },
	}
}

// Connect builds and connects an MQTT client per cfg.MQTT, with
// auto-reconnect and bounded connect retry enabled.
func Connect(cfg *config.Config, log *slog.Logger) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.MQTT.Broker)
	opts.SetClientID(cfg.MQTT.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnectionLost = func(mqtt.Client, error) {
		log.Warn("control: mqtt connection lost, will auto-reconnect", "broker", cfg.MQTT.Broker)
	}
	opts.OnConnect = func(mqtt.Client) {
		log.Info("control: mqtt connection established", "broker", cfg.MQTT.Broker)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return nil, fmt.Errorf("control: mqtt connect timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("control: mqtt connect failed: %w", err)
	}
	return client, nil
}

// Start subscribes to the control topic and begins processing commands
// on a background goroutine, returning once the subscription succeeds.
func (h *Handler) Start(ctx context.Context) error {
	token := h.client.Subscribe(h.cfg.MQTT.ControlTopic, 1, h.onMessage)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("control: subscribe timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("control: subscribe failed: %w", err)
	}

	go h.processLoop(ctx)
	h.log.Info("control: handler started", "topic", h.cfg.MQTT.ControlTopic)
	return nil
}

// Stop unsubscribes and stops processing commands.
func (h *Handler) Stop() error {
	if h.client != nil && h.client.IsConnected() {
		h.client.Unsubscribe(h.cfg.MQTT.ControlTopic).Wait()
	}
	close(h.commands)
	return nil
}

func (h *Handler) onMessage(_ mqtt.Client, msg mqtt.Message) {
	var cmd Command
	if err := json.Unmarshal(msg.Payload(), &cmd); err != nil {
		h.log.Error("control: malformed command payload", "error", err)
		h.publish(Response{CommandAck: "unknown", Status: "error", Error: "invalid JSON"})
		return
	}
	select {
	case h.commands <- cmd:
	default:
		h.log.Warn("control: command queue full, dropping", "command", cmd.Command)
	}
}

func (h *Handler) processLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd, ok := <-h.commands:
			if !ok {
				return
			}
			h.dispatch(cmd)
		}
	}
}

func intParam(params map[string]interface{}, key string) (int, bool) {
	v, ok := params[key].(float64) // encoding/json decodes numbers as float64
	if !ok {
		return 0, false
	}
	return int(v), true
}

func stringParam(params map[string]interface{}, key string) (string, bool) {
	v, ok := params[key].(string)
	return v, ok
}

func (h *Handler) dispatch(cmd Command) {
	resp := Response{CommandAck: cmd.Command, Timestamp: h.nowMillis()}

	switch cmd.Command {
	case "activate_input":
		resp = h.withIndex(resp, cmd, h.callbacks.OnActivateInput)
	case "deactivate_input":
		resp = h.withIndex(resp, cmd, h.callbacks.OnDeActivateInput)
	case "unset_avatar":
		resp = h.withIndex(resp, cmd, h.callbacks.OnUnsetAvatar)
	case "set_avatar":
		resp = h.withSetAvatar(resp, cmd)
	case "update_layout_solution":
		resp = h.withLayoutSolution(resp, cmd)
	case "draw_text":
		resp = h.withDrawText(resp, cmd)
	case "clear_text":
		if h.callbacks.OnClearText == nil {
			resp.Status, resp.Error = "error", "clear_text not implemented"
		} else if err := h.callbacks.OnClearText(); err != nil {
			resp.Status, resp.Error = "error", err.Error()
		} else {
			resp.Status = "success"
		}
	case "get_status":
		if h.callbacks.OnGetStatus == nil {
			resp.Status, resp.Error = "error", "get_status not implemented"
		} else {
			resp.Status = "success"
			resp.Data = h.callbacks.OnGetStatus()
		}
	default:
		resp.Status = "error"
		resp.Error = fmt.Sprintf("unknown command: %s", cmd.Command)
	}

	h.publish(resp)
}

func (h *Handler) withIndex(resp Response, cmd Command, fn func(int) error) Response {
	if fn == nil {
		resp.Status, resp.Error = "error", fmt.Sprintf("%s not implemented", cmd.Command)
		return resp
	}
	idx, ok := intParam(cmd.Params, "index")
	if !ok {
		resp.Status, resp.Error = "error", "missing or invalid 'index' parameter"
		return resp
	}
	if err := fn(idx); err != nil {
		resp.Status, resp.Error = "error", err.Error()
		return resp
	}
	resp.Status = "success"
	return resp
}

func (h *Handler) withSetAvatar(resp Response, cmd Command) Response {
	if h.callbacks.OnSetAvatar == nil {
		resp.Status, resp.Error = "error", "set_avatar not implemented"
		return resp
	}
	idx, ok := intParam(cmd.Params, "index")
	if !ok {
		resp.Status, resp.Error = "error", "missing or invalid 'index' parameter"
		return resp
	}
	url, ok := stringParam(cmd.Params, "url")
	if !ok {
		resp.Status, resp.Error = "error", "missing or invalid 'url' parameter"
		return resp
	}
	if err := h.callbacks.OnSetAvatar(idx, url); err != nil {
		resp.Status, resp.Error = "error", err.Error()
		return resp
	}
	resp.Status = "success"
	return resp
}

func (h *Handler) withLayoutSolution(resp Response, cmd Command) Response {
	if h.callbacks.OnUpdateLayoutSolution == nil {
		resp.Status, resp.Error = "error", "update_layout_solution not implemented"
		return resp
	}
	raw, ok := cmd.Params["solution"]
	if !ok {
		resp.Status, resp.Error = "error", "missing 'solution' parameter"
		return resp
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		resp.Status, resp.Error = "error", "malformed 'solution' parameter"
		return resp
	}
	if err := h.callbacks.OnUpdateLayoutSolution(encoded); err != nil {
		resp.Status, resp.Error = "error", err.Error()
		return resp
	}
	resp.Status = "success"
	return resp
}

func (h *Handler) withDrawText(resp Response, cmd Command) Response {
	if h.callbacks.OnDrawText == nil {
		resp.Status, resp.Error = "error", "draw_text not implemented"
		return resp
	}
	message, _ := stringParam(cmd.Params, "message")
	if err := h.callbacks.OnDrawText(message); err != nil {
		resp.Status, resp.Error = "error", err.Error()
		return resp
	}
	resp.Status = "success"
	return resp
}

func (h *Handler) publish(resp Response) {
	payload, err := json.Marshal(resp)
	if err != nil {
		h.log.Error("control: failed to marshal response", "error", err)
		return
	}
	token := h.client.Publish(h.cfg.MQTT.StatusTopic, 1, false, payload)
	if !token.WaitTimeout(2 * time.Second) {
		h.log.Error("control: response publish timeout")
		return
	}
	if err := token.Error(); err != nil {
		h.log.Error("control: response publish failed", "error", err)
	}
}
