// Package capture records remote API responses as JSON fixtures. It is off
// unless enabled and a directory is available.
package capture

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// envCaptureDir overrides the capture output directory.
const envCaptureDir = "TABD_CAPTURE_DIR"

const defaultCaptureDir = "captures"

var (
	sessionID      = time.Now().Format("20060102-150405")
	captureSeq     uint64
	captureEnabled atomic.Bool
)

// Enabled reports whether capture is currently active.
func Enabled() bool {
	return captureEnabled.Load()
}

// Enable turns on capture for the running process.
func Enable() {
	captureEnabled.Store(true)
}

// Disable turns off capture for the running process.
func Disable() {
	captureEnabled.Store(false)
}

// Dir returns the directory the current session writes to.
func Dir() string {
	dir := os.Getenv(envCaptureDir)
	if dir == "" {
		dir = defaultCaptureDir
	}
	return filepath.Join(dir, sessionID)
}

// WriteJSON marshals payload to indented JSON and stores it as
// <dir>/<category>-<seq>.json. Failures are logged and otherwise ignored.
func WriteJSON(category string, payload interface{}) {
	if !Enabled() {
		return
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		log.Warn().Err(err).Str("category", category).Msg("capture: failed to marshal payload")
		return
	}

	dir := Dir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Warn().Err(err).Str("dir", dir).Msg("capture: failed to create directory")
		return
	}

	seq := atomic.AddUint64(&captureSeq, 1)
	path := filepath.Join(dir, fmt.Sprintf("%s-%04d.json", category, seq))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("capture: failed to write file")
		return
	}

	log.Debug().Str("path", path).Msg("capture: wrote fixture")
}
