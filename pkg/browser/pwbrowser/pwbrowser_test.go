package pwbrowser

import (
	"context"
	"testing"
	"time"

	"dev/bravebird/ui-verification-go/pkg/verify/verifytest"
)

func TestPlaywrightDriver(t *testing.T) {
	verifytest.RunDriverSuite(t, NewLauncher())
}

func TestTimeoutFor(t *testing.T) {
	if got := *timeoutFor(context.Background()); got != float64(actionTimeout.Milliseconds()) {
		t.Errorf("timeoutFor(no deadline) = %v, want %v", got, actionTimeout.Milliseconds())
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if got := *timeoutFor(ctx); got > 1000 || got <= 0 {
		t.Errorf("timeoutFor(1s deadline) = %v, want (0, 1000]", got)
	}

	expired, cancel2 := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel2()
	if got := *timeoutFor(expired); got != 1 {
		t.Errorf("timeoutFor(expired) = %v, want 1", got)
	}
}
