package observability

import (
	"github.com/danmuck/landctl/internal/logging"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger installs a console logger tagged with app as log.Logger,
// honouring the active logging profile.
func InitLogger(app string) zerolog.Logger {
	logger := logging.New(logging.Active()).With().Str("app", app).Logger()
	log.Logger = logger
	return logger
}
