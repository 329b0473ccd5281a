//go:build !unix

package server

import "syscall"

func listenControl(reusePort bool) func(network, address string, c syscall.RawConn) error {
	return func(network, address string, c syscall.RawConn) error {
		if reusePort {
			return ErrReusePortUnsupported
		}
		return nil
	}
}
