// Package capture declares the screenshot producer consumed by
// VaultService.AddCapture. Platform implementations live outside this
// module; Static serves tests and headless use.
package capture

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// Metadata describes one capture of the focused window.
type Metadata struct {
	AppName        string
	WindowTitle    string
	ScreenshotPath string
}

type Producer interface {
	Capture(ctx context.Context) (Metadata, error)
}

// ProducerFunc adapts a function to Producer.
type ProducerFunc func(ctx context.Context) (Metadata, error)

func (f ProducerFunc) Capture(ctx context.Context) (Metadata, error) { return f(ctx) }

// Static always returns the same metadata.
type Static Metadata

func (s Static) Capture(context.Context) (Metadata, error) { return Metadata(s), nil }

// Title picks the item title for a capture.
func (m Metadata) Title() string {
	if t := strings.TrimSpace(m.WindowTitle); t != "" {
		return t
	}
	if a := strings.TrimSpace(m.AppName); a != "" {
		return a
	}
	return "Capture"
}

// Content renders the text stored as the item body.
func (m Metadata) Content(capturedAt string) string {
	return fmt.Sprintf("App: %s\nWindow: %s\nCaptured: %s", m.AppName, m.WindowTitle, capturedAt)
}

// ImageName is the screenshot file name relative to the captures folder,
// or "" when there is no screenshot.
func (m Metadata) ImageName() string {
	if m.ScreenshotPath == "" {
		return ""
	}
	return filepath.Base(m.ScreenshotPath)
}
