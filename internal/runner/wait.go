package runner

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/avast/retry-go/v4"
)

// artifactWait bounds the retry-with-delay applied when a reported-successful
// execution has not yet made its artifacts visible (networked filesystems).
const (
	artifactWaitAttempts = 5
	artifactWaitDelay    = 200 * time.Millisecond
)

// WaitForFile polls for a path to exist with a non-zero size, with bounded
// retries. Accommodates filesystems where a completed write is not
// immediately visible to a subsequent read.
func WaitForFile(ctx context.Context, path string) error {
	return retry.Do(
		func() error {
			info, err := os.Stat(path)
			if err != nil {
				return err
			}
			if info.Size() == 0 {
				return fmt.Errorf("file %s is empty", path)
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(artifactWaitAttempts),
		retry.Delay(artifactWaitDelay),
	)
}
