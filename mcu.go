// Package mcu is the public entry point for the soft video compositor:
// a CPU-based frame compositor for a multipoint conferencing unit. The
// implementation lives in internal/compositor and the other internal/*
// packages; this package only re-exports the stable public contract.
package mcu

import (
	"log/slog"

	"github.com/visiona/mcu/internal/compositor"
)

// New constructs a Compositor with the given configuration and logger.
// A nil logger falls back to slog.Default().
func New(cfg Config, log *slog.Logger) (*Compositor, error) {
	return compositor.New(cfg, log)
}
