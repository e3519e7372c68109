package shutdown

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestShutdownRunsHooksInOrder(t *testing.T) { //nolint:paralleltest
	var order []string

	BeforeShutdown(func() { order = append(order, "cron") })
	BeforeShutdown(func() { order = append(order, "pool") })

	ctx := SetupHandler(t.Context())

	Shutdown()

	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("context was not canceled")
	}

	assert.Equal(t, []string{"cron", "pool"}, order)
}

func TestShutdownWithoutHandlerIsNoop(t *testing.T) { //nolint:paralleltest
	assert.NotPanics(t, Shutdown)
}
