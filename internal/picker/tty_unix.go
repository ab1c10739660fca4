//go:build !windows

package picker

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

const ttyPath = "/dev/tty"

// openTTY opens the controlling terminal for both input and output.
func openTTY() (*os.File, error) {
	return os.OpenFile(ttyPath, os.O_RDWR, 0)
}

// checkTTY verifies that /dev/tty is openable.
func checkTTY() error {
	f, err := os.Open(ttyPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoTTY, err)
	}
	f.Close()
	return nil
}

// checkTERM verifies that the TERM environment variable is not "dumb".
func checkTERM() error {
	if os.Getenv("TERM") == "dumb" {
		return fmt.Errorf("%w: TERM=dumb is not supported", ErrNoTTY)
	}
	return nil
}

// checkTermWidth verifies that the terminal is at least 20 columns wide.
func checkTermWidth() error {
	f, err := os.Open(ttyPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoTTY, err)
	}
	defer f.Close()

	ws, err := unix.IoctlGetWinsize(int(f.Fd()), unix.TIOCGWINSZ)
	if err != nil {
		return fmt.Errorf("%w: cannot get terminal size: %v", ErrNoTTY, err)
	}

	if ws.Col < 20 {
		return fmt.Errorf("%w: terminal too narrow (%d columns, need at least 20)", ErrNoTTY, ws.Col)
	}

	return nil
}
