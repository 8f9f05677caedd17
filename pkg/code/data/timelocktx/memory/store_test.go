package memory

import (
	"testing"

	"github.com/code-payments/code-timelock-server/pkg/code/data/timelocktx/tests"
)

func TestTimelockTransactionMemoryStore(t *testing.T) {
	testStore := New()
	teardown := func() {
		testStore.(*store).reset()
	}
	tests.RunTests(t, testStore, teardown)
}
