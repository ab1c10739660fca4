//go:build windows

package picker

import "os"

// The picker drives the TUI on the controlling terminal so stdin/stdout
// stay free for data. Windows has no /dev/tty equivalent, so Run reports
// ErrNoTTY and callers fall back to plain output.

func openTTY() (*os.File, error) {
	return nil, ErrNoTTY
}

func checkTTY() error {
	return ErrNoTTY
}

func checkTERM() error {
	return nil
}

func checkTermWidth() error {
	return nil
}
