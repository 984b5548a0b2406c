package core

import (
	"time"
)

// Default settings, used when no override document exists.
const (
	DefaultMaxBorrowingDays      = 7
	DefaultLateReturnFine        = 5.0
	DefaultDamagedBookPercentage = 60
	DefaultLostBookPercentage    = 85
	DefaultReservationDuration   = 12 * time.Hour
)

// LibrarySettings is the fine/duration configuration snapshot read at the
// moment of each computation. A settings change never retroactively affects
// already-issued loans or existing fines.
type LibrarySettings struct {
	MaxBorrowingDays      int
	LateReturnFine        float64
	DamagedBookPercentage int
	LostBookPercentage    int
	ReservationDuration   time.Duration
}

// DefaultLibrarySettings returns the built-in defaults.
func DefaultLibrarySettings() LibrarySettings {
	return LibrarySettings{
		MaxBorrowingDays:      DefaultMaxBorrowingDays,
		LateReturnFine:        DefaultLateReturnFine,
		DamagedBookPercentage: DefaultDamagedBookPercentage,
		LostBookPercentage:    DefaultLostBookPercentage,
		ReservationDuration:   DefaultReservationDuration,
	}
}

// HoldWindowFor resolves the reservation hold window for a request:
// the request's own window when set, the settings default otherwise.
func (s LibrarySettings) HoldWindowFor(requested time.Duration) time.Duration {
	if requested > 0 {
		return requested
	}

	return s.ReservationDuration
}
