//go:build linux

package console

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// setBaud reprograms only the line speed, leaving the rest of the
// termios state as the kernel/getty left it.
func setBaud(path string, baud int) error {
	spd, err := baudToUnix(baud)
	if err != nil {
		return err
	}

	// O_NONBLOCK so the open does not wait for carrier on a modem line.
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK, 0)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = unix.Close(fd) }()

	t, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return fmt.Errorf("tcgets %s: %w", path, err)
	}

	t.Cflag &^= unix.CBAUD
	t.Cflag |= spd
	t.Ispeed = spd
	t.Ospeed = spd

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, t); err != nil {
		return fmt.Errorf("tcsets %s: %w", path, err)
	}
	return nil
}

var setBaudFn = setBaud

func baudToUnix(baud int) (uint32, error) {
	switch baud {
	case 4800:
		return unix.B4800, nil
	case 9600:
		return unix.B9600, nil
	case 19200:
		return unix.B19200, nil
	case 38400:
		return unix.B38400, nil
	case 57600:
		return unix.B57600, nil
	case 115200:
		return unix.B115200, nil
	default:
		return 0, fmt.Errorf("unsupported baud %d", baud)
	}
}
