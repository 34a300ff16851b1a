package reanalysis

import (
	"context"
)

// FetchOutcome tells whether a fetch was served from the cache or the network.
type FetchOutcome int

const (
	CacheHit FetchOutcome = iota
	Downloaded
)

func (o FetchOutcome) String() string {
	if o == Downloaded {
		return "downloaded"
	}
	return "cache hit"
}

// Fetcher stores the body of rawURL at dest unless dest already exists.
// Implementations must not leave a file at dest when the download fails.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL, dest string) (FetchOutcome, error)
}

// RunStore is the contract the in-memory run history (and any future
// persistent store) must satisfy.
type RunStore interface {
	SaveRun(summary RunSummary)
	GetLatest() (RunSummary, error)
	List() ([]RunSummary, error)
}
