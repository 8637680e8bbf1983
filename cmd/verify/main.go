// Command verify checks the settings panel of the app served at
// http://127.0.0.1:8080 in a headless Chromium and saves a screenshot of
// the open panel. It exits non-zero on the first failed check.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tlog "go.temporal.io/sdk/log"

	"dev/bravebird/ui-verification-go/pkg/browser/rodbrowser"
	"dev/bravebird/ui-verification-go/pkg/verify"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := tlog.NewStructuredLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	runner := verify.NewRunner(rodbrowser.NewLauncher(), verify.DefaultScenario(), verify.WithLogger(logger))

	result, err := runner.Run(ctx)
	if err != nil {
		stop()
		if failed, ok := result.FailedStep(); ok {
			log.Fatalf("Verification failed at step %d (%s): %v", failed.SequenceID, failed.Name, err)
		}
		log.Fatalf("Verification failed: %v", err)
	}

	log.Printf("Verification passed in %dms, screenshot saved to %s", result.TotalDuration, result.ScreenshotPath)
}
