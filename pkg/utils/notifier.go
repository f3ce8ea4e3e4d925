//go:build linux

package utils

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/sys/unix"
)

// Notifier is an eventfd that becomes readable after Notify and stays readable
// until it is drained. It lets goroutines wake up an epoll based event loop, and
// gives protocol libraries without a socket of their own a descriptor to report
// as their interest.
type Notifier struct {
	fd int
}

func NewNotifier() (*Notifier, error) {
	fd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("eventfd: %w", err)
	}
	return &Notifier{fd: fd}, nil
}

func (n *Notifier) Fd() int {
	return n.fd
}

// Notify makes the descriptor readable. It is safe to call from any goroutine.
func (n *Notifier) Notify() error {
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 1)
	for {
		_, err := unix.Write(n.fd, buf[:])
		switch err {
		case nil:
			return nil
		case unix.EINTR:
			continue
		case unix.EAGAIN:
			// The counter is saturated, so the fd is readable already.
			return nil
		default:
			return fmt.Errorf("notify: %w", err)
		}
	}
}

// Drain resets the counter and reports how many notifications were pending.
func (n *Notifier) Drain() (uint64, error) {
	var buf [8]byte
	for {
		_, err := unix.Read(n.fd, buf[:])
		switch err {
		case nil:
			return binary.NativeEndian.Uint64(buf[:]), nil
		case unix.EINTR:
			continue
		case unix.EAGAIN:
			return 0, nil
		default:
			return 0, fmt.Errorf("drain: %w", err)
		}
	}
}

func (n *Notifier) Close() error {
	if n.fd < 0 {
		return nil
	}
	err := unix.Close(n.fd)
	n.fd = -1
	return err
}
