package httpd

import (
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestInterruptTriggersShutdownAndExits(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := New().(*defaultServer)
	done := make(chan struct{})
	go func() {
		handleInterrupt(new(sync.Once), s)
		close(done)
	}()

	s.interrupt <- syscall.SIGINT

	select {
	case <-s.shutdown:
	case <-time.After(time.Second):
		t.Fatal("shutdown was not triggered")
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("signal relay did not exit")
	}

	// a second Shutdown is a no-op
	require.NoError(t, s.Shutdown())
}
