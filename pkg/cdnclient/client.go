package cdnclient

import (
	"context"
)

// Purger is the CDN cache-purge capability. Purging is best-effort and
// decoupled from sync correctness; callers log failures and move on.
type Purger interface {
	PurgePath(ctx context.Context, url string) error
}
