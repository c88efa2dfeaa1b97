package loopback

import (
	"context"
	"fmt"
	"io"

	"golang.org/x/sys/unix"
)

// TTYComm is a platform.Comm backed directly by a raw Linux TTY file
// descriptor (golang.org/x/sys/unix), for targets reachable through a
// plain character device rather than a USB-serial adapter that needs
// go.bug.st/serial's cross-platform enumeration. It puts the line into
// non-canonical, unechoed mode the way a raw debug UART expects —
// every byte delivered as-is, no line buffering, no signal characters
// intercepted by the tty layer.
type TTYComm struct {
	fd   int
	orig unix.Termios
}

// NewTTYComm opens path (e.g. "/dev/ttyUSB0") and switches it to raw
// mode, restorable via Close.
func NewTTYComm(path string) (*TTYComm, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NOCTTY, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	orig, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("get termios: %w", err)
	}
	raw := *orig
	raw.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP |
		unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	raw.Oflag &^= unix.OPOST
	raw.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	raw.Cflag &^= unix.CSIZE | unix.PARENB
	raw.Cflag |= unix.CS8
	raw.Cc[unix.VMIN] = 1
	raw.Cc[unix.VTIME] = 0
	if err := unix.IoctlSetTermios(fd, unix.TCSETS, &raw); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("set termios: %w", err)
	}
	return &TTYComm{fd: fd, orig: *orig}, nil
}

func (t *TTYComm) HasReceiveData() bool {
	pfd := []unix.PollFd{{Fd: int32(t.fd), Events: unix.POLLIN}}
	n, err := unix.Poll(pfd, 0)
	return err == nil && n > 0 && pfd[0].Revents&unix.POLLIN != 0
}

func (t *TTYComm) ReceiveChar(ctx context.Context) (byte, error) {
	buf := make([]byte, 1)
	for {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		default:
		}
		pfd := []unix.PollFd{{Fd: int32(t.fd), Events: unix.POLLIN}}
		n, err := unix.Poll(pfd, 100)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return 0, err
		}
		if n == 0 {
			continue
		}
		nr, err := unix.Read(t.fd, buf)
		if err != nil {
			return 0, err
		}
		if nr == 0 {
			return 0, io.EOF
		}
		return buf[0], nil
	}
}

func (t *TTYComm) HasTransmitCompleted() bool { return true }

func (t *TTYComm) SendChar(b byte) error {
	_, err := unix.Write(t.fd, []byte{b})
	return err
}

func (t *TTYComm) SendBuffer(p []byte) error {
	_, err := unix.Write(t.fd, p)
	return err
}

// Close restores the tty's original termios settings and closes the fd.
func (t *TTYComm) Close() error {
	_ = unix.IoctlSetTermios(t.fd, unix.TCSETS, &t.orig)
	return unix.Close(t.fd)
}
