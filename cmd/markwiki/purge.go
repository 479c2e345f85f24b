package main

import (
	"context"
	"fmt"
	"markwiki/internal/cache"
	"markwiki/internal/logger"
	"time"
)

// purgeExpired drops expired cache rows every interval until ctx ends.
func purgeExpired(ctx context.Context, c *cache.Cache, interval time.Duration, log logger.Logger) {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := c.Purge()
			if err != nil {
				log.Error(err, "Failed to purge expired cache entries")
				continue
			}
			if n > 0 {
				log.Debug(fmt.Sprintf("Purged %d expired cache entries", n))
			}
		}
	}
}
