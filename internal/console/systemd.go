package console

import (
	"fmt"

	"github.com/godbus/dbus/v5"
)

const (
	systemdDest    = "org.freedesktop.systemd1"
	systemdPath    = dbus.ObjectPath("/org/freedesktop/systemd1")
	managerMask    = "org.freedesktop.systemd1.Manager.MaskUnitFiles"
	managerStop    = "org.freedesktop.systemd1.Manager.StopUnit"
	stopModeString = "replace"
)

type systemdBus struct {
	conn *dbus.Conn
}

// NewSystemdManager connects to the system bus. The library honors
// DBUS_SYSTEM_BUS_ADDRESS, which balena containers use to reach the
// host bus.
func NewSystemdManager() (SystemdManager, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("console: system bus: %w", err)
	}
	return &systemdBus{conn: conn}, nil
}

func (b *systemdBus) object() dbus.BusObject {
	return b.conn.Object(systemdDest, systemdPath)
}

// MaskUnit masks the unit at runtime, forcing over existing symlinks.
func (b *systemdBus) MaskUnit(name string) error {
	call := b.object().Call(managerMask, 0, []string{name}, true, true)
	if call.Err != nil {
		return fmt.Errorf("console: mask %s: %w", name, call.Err)
	}
	return nil
}

func (b *systemdBus) StopUnit(name string) error {
	call := b.object().Call(managerStop, 0, name, stopModeString)
	if call.Err != nil {
		return fmt.Errorf("console: stop %s: %w", name, call.Err)
	}
	return nil
}
