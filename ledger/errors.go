package ledger

import (
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

var (
	ErrRunNotFound = errors.New("run not found")

	// ErrPositionNotFound is returned when closing a position that does not
	// exist or was already closed.
	ErrPositionNotFound = errors.New("open position not found")

	// ErrReferentialIntegrity is returned when a record names a parent run
	// or signal that does not exist.
	ErrReferentialIntegrity = errors.New("referential integrity violation")

	ErrInvalidRecord = errors.New("invalid record")

	ErrClosed = errors.New("ledger store is closed")
)

// IsRecoverable reports whether err is a business condition the caller is
// expected to handle. Any other error points at a defect upstream.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrPositionNotFound) || errors.Is(err, ErrReferentialIntegrity)
}

// translate maps SQLite constraint failures onto ledger errors.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var se sqlite3.Error
	if errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintForeignKey {
		return fmt.Errorf("%w: %v", ErrReferentialIntegrity, err)
	}
	return err
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRecord, fmt.Sprintf(format, args...))
}
