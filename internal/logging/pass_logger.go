package logging

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// PassLogger tags every line written during one scan pass with the pass id
// and the page it scans.
type PassLogger struct {
	id        string
	startTime time.Time
	logger    zerolog.Logger
}

// StartPass creates a logger for a new pass over pageURL.
func StartPass(pageURL string) *PassLogger {
	id := uuid.NewString()
	ctx := log.With().Str("pass_id", id)
	if pageURL != "" {
		ctx = ctx.Str("page", pageURL)
	}
	return &PassLogger{
		id:        id,
		startTime: time.Now(),
		logger:    ctx.Logger(),
	}
}

// ID returns the pass id.
func (p *PassLogger) ID() string {
	if p == nil {
		return ""
	}
	return p.id
}

// Logger returns the underlying zerolog logger, or a disabled one for a nil
// PassLogger.
func (p *PassLogger) Logger() *zerolog.Logger {
	if p == nil {
		nop := zerolog.Nop()
		return &nop
	}
	return &p.logger
}

// Log writes a debug message with the time elapsed since the pass started.
func (p *PassLogger) Log(format string, args ...interface{}) {
	if p == nil {
		return
	}
	p.logger.Debug().
		Dur("elapsed", time.Since(p.startTime).Round(time.Millisecond)).
		Msg(fmt.Sprintf(format, args...))
}

// Elapsed returns the time since the pass started.
func (p *PassLogger) Elapsed() time.Duration {
	if p == nil {
		return 0
	}
	return time.Since(p.startTime)
}
