//go:build !unix

package listener

import "syscall"

func reuseAddr(network, address string, rc syscall.RawConn) error {
	return nil
}
