// TEST TYPE: Unit Test
// DEPENDENCIES: None
// PURPOSE: Test logger setup and component logger naming

package logging_test

import (
	"testing"

	"github.com/gregpriday/copytree/pkg/logging"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestSetupLogger_Verbosity(t *testing.T) {
	tests := []struct {
		name      string
		verbosity int
		wantLevel zerolog.Level
	}{
		{"default_warn", 0, zerolog.WarnLevel},
		{"verbose_info", 1, zerolog.InfoLevel},
		{"very_verbose_debug", 2, zerolog.DebugLevel},
		{"extreme_trace", 5, zerolog.TraceLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logging.SetupLogger(tt.verbosity)
			assert.Equal(t, tt.wantLevel, zerolog.GlobalLevel())
		})
	}
}

func TestGetLogger(t *testing.T) {
	logger := logging.GetLogger("pipeline.transform")
	// Logger should be usable without panicking
	logger.Debug().Str("key", "value").Msg("test message")
}

func TestLogOperationStart(t *testing.T) {
	logger := logging.GetLogger("test")
	done := logging.LogOperationStart(logger, "scan")
	assert.NotNil(t, done)
	done()
}
