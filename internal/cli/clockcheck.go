package cli

import (
	"log/slog"
	"time"

	"github.com/beevik/ntp"
)

// MaxClockOffset is the host clock skew above which serve warns.
// Reservation windows open and close on the host clock.
const MaxClockOffset = 500 * time.Millisecond

// ntpQuery is swapped in tests.
var ntpQuery = ntp.Query

// checkClockOffset queries server once and logs the host clock offset.
// It never fails serve: an unreachable server is only a warning.
func checkClockOffset(server string, logger *slog.Logger) (time.Duration, error) {
	resp, err := ntpQuery(server)
	if err != nil {
		logger.Warn("clock check failed", "server", server, "error", err)
		return 0, err
	}

	offset := resp.ClockOffset
	if offset.Abs() >= MaxClockOffset {
		logger.Warn("host clock is skewed; reservations will open and close late or early",
			"server", server,
			"offset", offset,
		)
	} else {
		logger.Debug("host clock ok", "server", server, "offset", offset)
	}
	return offset, nil
}
