package async

import (
	"context"
	"time"
)

// Service is a background worker owned by the app. Start blocks, polling
// every interval, until ctx is cancelled.
type Service interface {
	Start(ctx context.Context, interval time.Duration) error
}
