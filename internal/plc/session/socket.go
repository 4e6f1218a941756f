package session

import (
	"net"
	"time"

	"golang.org/x/sys/unix"
)

// dialTimeout bounds the initial TCP connect attempt.
const dialTimeout = 5 * time.Second

// ioDeadline is the short, repeated read/write deadline the cooperative
// I/O worker uses to poll the socket without blocking other sessions
// (spec.md S4.6: "non-blocking socket calls" as the only suspension
// points).
const ioDeadline = 20 * time.Millisecond

// dial opens a TCP connection to addr and tunes its socket options per
// spec.md S4.4's CONNECTING row: SO_REUSEADDR, SO_RCVTIMEO/SO_SNDTIMEO of
// 10s, SO_LINGER{1,0}.
func dial(dialFn func(network, addr string) (net.Conn, error), addr string) (net.Conn, error) {
	conn, err := dialFn("tcp", addr)
	if err != nil {
		return nil, err
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		if err := tuneSocket(tc); err != nil {
			tc.Close()
			return nil, err
		}
	}
	return conn, nil
}

// tuneSocket applies the socket options spec.md S4.4 names, reaching
// through SyscallConn to the raw file descriptor the way a raw-fd ioctl
// caller would (the standard library exposes none of these options
// directly on *net.TCPConn).
func tuneSocket(tc *net.TCPConn) error {
	raw, err := tc.SyscallConn()
	if err != nil {
		return err
	}
	var sockErr error
	ctrlErr := raw.Control(func(fd uintptr) {
		if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
			sockErr = err
			return
		}
		tv := unix.Timeval{Sec: 10, Usec: 0}
		if err := unix.SetsockoptTimeval(int(fd), unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
			sockErr = err
			return
		}
		if err := unix.SetsockoptTimeval(int(fd), unix.SOL_SOCKET, unix.SO_SNDTIMEO, &tv); err != nil {
			sockErr = err
			return
		}
		linger := unix.Linger{Onoff: 1, Linger: 0}
		if err := unix.SetsockoptLinger(int(fd), unix.SOL_SOCKET, unix.SO_LINGER, &linger); err != nil {
			sockErr = err
			return
		}
	})
	if ctrlErr != nil {
		return ctrlErr
	}
	return sockErr
}
