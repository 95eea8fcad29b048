package roomstore

import "github.com/rs/zerolog"

// Alerter is told about persistence failures that abandoned a write. It is
// the hook through which a presentation layer interrupts the user.
type Alerter interface {
	Alert(err error)
}

// AlertFunc adapts a function to Alerter.
type AlertFunc func(err error)

// Alert calls f(err).
func (f AlertFunc) Alert(err error) { f(err) }

// LogAlerter reports alerts as error-level log lines.
type LogAlerter struct {
	Log *zerolog.Logger
}

// Alert logs err.
func (a LogAlerter) Alert(err error) {
	if a.Log == nil {
		return
	}
	a.Log.Error().Err(err).Msg("changes could not be saved")
}
