package ratelimit

import "context"

// Attempt performs one try. It returns retry=true when the failure is worth
// another attempt.
type Attempt func(ctx context.Context, attempt int) (retry bool, err error)

// Do waits on the limiter before every try and backs off between failed
// tries, up to maxRetries retries after the first attempt. The last error is
// returned when the budget is exhausted.
func Do(ctx context.Context, l Limiter, maxRetries int, fn Attempt) error {
	var err error
	for attempt := 0; ; attempt++ {
		if werr := l.Wait(ctx); werr != nil {
			if err != nil {
				return err
			}
			return werr
		}

		var retry bool
		retry, err = fn(ctx, attempt)
		if err == nil || !retry || !ShouldRetry(attempt+1, maxRetries) {
			return err
		}

		if serr := sleep(ctx, l.RetryAfter(attempt+1)); serr != nil {
			return err
		}
	}
}
