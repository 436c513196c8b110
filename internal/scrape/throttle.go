package scrape

import (
	"context"

	"golang.org/x/time/rate"
)

// Throttle limits page loads through nav to perSec, with a burst of one.
// Open and Update wait for a token; Probe and Close pass straight through.
// perSec <= 0 returns nav unchanged.
func Throttle(nav Navigator, perSec float64) Navigator {
	if perSec <= 0 {
		return nav
	}
	return &throttled{Navigator: nav, limiter: rate.NewLimiter(rate.Limit(perSec), 1)}
}

type throttled struct {
	Navigator
	limiter *rate.Limiter
}

func (t *throttled) Open(ctx context.Context, url string) (Handle, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return t.Navigator.Open(ctx, url)
}

func (t *throttled) Update(ctx context.Context, h Handle, url string) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}
	return t.Navigator.Update(ctx, h, url)
}
