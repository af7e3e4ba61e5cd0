package hardware

// Package hardware probes the Raspberry Pi device tree and character
// devices. UART configuration (specifically the required dt overlay) is
// not uniform across Pi models, so callers match the reported model
// string against a configured allow-list.

import (
	"fmt"
	"os"
	"strings"
)

// Common device-tree model paths across Pi distros.
var modelPaths = []string{
	"/sys/firmware/devicetree/base/model",
	"/proc/device-tree/model",
}

// Model returns the device-tree model string, e.g.
// "Raspberry Pi 3 Model B Rev 1.2".
func Model() (string, error) {
	return modelFromPaths(modelPaths)
}

func modelFromPaths(paths []string) (string, error) {
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		model := strings.TrimSpace(string(b))
		model = strings.Trim(model, "\x00")
		if model != "" {
			return model, nil
		}
	}
	return "", fmt.Errorf("hardware: device-tree model not readable")
}

// MatchSupportedModel returns the first entry of supported that the
// model string contains.
func MatchSupportedModel(model string, supported []string) (string, bool) {
	for _, m := range supported {
		if m != "" && strings.Contains(model, m) {
			return m, true
		}
	}
	return "", false
}

// IsCharDevice reports whether path exists and is a character device.
func IsCharDevice(path string) bool {
	fi, err := os.Stat(path)
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
