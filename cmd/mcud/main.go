// Command mcud runs the soft video compositor daemon: it loads a YAML
// configuration file, constructs a Compositor, starts its MQTT
// control-plane listener, and runs until interrupted.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/visiona/mcu"
	"github.com/visiona/mcu/internal/config"
	"github.com/visiona/mcu/internal/control"
	"github.com/visiona/mcu/internal/layout"
	"github.com/visiona/mcu/internal/textoverlay"
)

const defaultConfigPath = "config/mcud.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	if err := run(*configPath, logger); err != nil {
		logger.Error("mcud exited with error", "error", err)
		os.Exit(1)
	}
}

func run(configPath string, logger *slog.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger.Info("starting mcud", "instance", cfg.InstanceID, "config", configPath)

	comp, err := mcu.New(mcu.Config{
		RootSize:   mcu.VideoSize{W: cfg.Canvas.Width, H: cfg.Canvas.Height},
		BgColor:    mcu.YUVColor{Y: cfg.Canvas.BgY, Cb: cfg.Canvas.BgCb, Cr: cfg.Canvas.BgCr},
		Crop:       cfg.Canvas.CropPlace,
		MaxInput:   cfg.MaxInput,
		HighFpsMax: cfg.HighBand.MaxFps,
		HighFpsMin: cfg.HighBand.MinFps,
		LowFpsMax:  cfg.LowBand.MaxFps,
		LowFpsMin:  cfg.LowBand.MinFps,
	}, logger)
	if err != nil {
		return fmt.Errorf("construct compositor: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := comp.Start(ctx); err != nil {
		return fmt.Errorf("start compositor: %w", err)
	}
	defer comp.Stop()

	mqttClient, err := control.Connect(cfg, logger)
	if err != nil {
		return fmt.Errorf("connect mqtt: %w", err)
	}
	defer mqttClient.Disconnect(250)

	handler := control.NewHandler(cfg, mqttClient, callbacksFor(comp), logger)
	if err := handler.Start(ctx); err != nil {
		return fmt.Errorf("start control handler: %w", err)
	}
	defer handler.Stop()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	logger.Info("received shutdown signal", "signal", sig.String())
	cancel()

	logger.Info("mcud stopped successfully")
	return nil
}

// callbacksFor wires the compositor's control surface into a
// control.Callbacks table.
func callbacksFor(comp *mcu.Compositor) control.Callbacks {
	return control.Callbacks{
		OnActivateInput:   comp.ActivateInput,
		OnDeActivateInput: comp.DeActivateInput,
		OnSetAvatar:       comp.SetAvatar,
		OnUnsetAvatar:     comp.UnsetAvatar,
		OnUpdateLayoutSolution: func(raw json.RawMessage) error {
			var sol layout.Solution
			if err := json.Unmarshal(raw, &sol); err != nil {
				return fmt.Errorf("decode layout solution: %w", err)
			}
			comp.UpdateLayoutSolution(sol)
			return nil
		},
		OnDrawText: func(message string) error {
			comp.DrawText(textoverlay.Text{Message: message, X: 16, Y: 16, W: 200, H: 32})
			return nil
		},
		OnClearText: func() error {
			comp.ClearText()
			return nil
		},
		OnGetStatus: comp.Status,
	}
}
