package retry

import "time"

// Profiles bundle retry settings tuned per dependency class. Each call
// returns a fresh Options value the caller may adjust before use.

// ProfileDatabase suits connection checkouts and short queries.
func ProfileDatabase() Options {
	return Options{
		MaxRetries:   3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2,
	}
}

// ProfileExternalAPI suits third-party HTTP calls. Jitter is enabled to
// avoid synchronized retry bursts against a recovering upstream.
func ProfileExternalAPI() Options {
	return Options{
		MaxRetries:   3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2,
		Jitter:       true,
	}
}

// ProfileQueue suits message publish and consume operations.
func ProfileQueue() Options {
	return Options{
		MaxRetries:   5,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2,
	}
}

// ProfileCache suits cache store operations, which must give up quickly.
func ProfileCache() Options {
	return Options{
		MaxRetries:   2,
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     500 * time.Millisecond,
		Multiplier:   2,
	}
}
