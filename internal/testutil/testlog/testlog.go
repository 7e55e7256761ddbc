package testlog

import (
	"testing"

	"github.com/jpitassi/silverpop/internal/logging"
)

func Start(t *testing.T) {
	t.Helper()
	logging.ConfigureTests()
	logging.Logf("test=%s", t.Name())
}
