package testutil

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

// Test binaries log everything, but only print it with -v
func init() {
	logrus.SetLevel(logrus.TraceLevel)

	for _, arg := range os.Args {
		if arg == "-test.v" || strings.HasPrefix(arg, "-test.v=") && arg != "-test.v=false" {
			return
		}
	}
	logrus.StandardLogger().Out = io.Discard
}

// CaptureLogs records entries logged to the standard logger until reset is
// called
func CaptureLogs() (hook *test.Hook, reset func()) {
	logger := logrus.StandardLogger()
	original := logger.ReplaceHooks(make(logrus.LevelHooks))

	hook = test.NewGlobal()
	return hook, func() {
		logger.ReplaceHooks(original)
	}
}
