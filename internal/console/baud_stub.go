//go:build !linux

package console

import "fmt"

func setBaud(path string, baud int) error {
	return fmt.Errorf("console: serial baud setup not supported on this platform")
}

var setBaudFn = setBaud
