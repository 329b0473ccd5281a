//go:build unix

package server

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// listenControl returns the socket setup run before bind. The net package
// already sets SO_REUSEADDR on unix listeners; SO_REUSEPORT is added when
// requested so several servers can share one port.
func listenControl(reusePort bool) func(network, address string, c syscall.RawConn) error {
	return func(network, address string, c syscall.RawConn) error {
		if !reusePort {
			return nil
		}
		var serr error
		err := c.Control(func(fd uintptr) {
			serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
		})
		if err != nil {
			return err
		}
		return serr
	}
}
