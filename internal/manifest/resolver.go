package manifest

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Resolver composes fetch, parse and cache into the single question the
// dispatcher asks: "what is the contract for this origin right now?".
type Resolver struct {
	fetcher *Fetcher
	parser  *Parser
	cache   *Cache
	logger  *logrus.Logger
}

// NewResolver creates a contract resolver over the given collaborators.
func NewResolver(fetcher *Fetcher, parser *Parser, cache *Cache, logger *logrus.Logger) *Resolver {
	if logger == nil {
		logger = logrus.New()
	}

	return &Resolver{
		fetcher: fetcher,
		parser:  parser,
		cache:   cache,
		logger:  logger,
	}
}

// Resolve returns the contract for origin, fetching and parsing the manifest
// on a cache miss. A failed fetch stores nothing and returns ok=false;
// callers treat that as "no tools available", never as an error.
func (r *Resolver) Resolve(ctx context.Context, origin string) (*Contract, bool) {
	if origin == "" {
		return nil, false
	}

	if contract, ok := r.cache.Get(origin); ok {
		return contract, true
	}

	text, ok := r.fetcher.Fetch(ctx, origin)
	if !ok {
		return nil, false
	}

	contract := r.parser.Parse(text)
	r.cache.Put(origin, contract)
	r.logger.Infof("Loaded contract for %s: app=%q actions=%d", origin, contract.AppName, len(contract.Actions))

	return contract, true
}

// Invalidate drops every cached contract so the next Resolve re-fetches.
func (r *Resolver) Invalidate() {
	r.cache.Invalidate()
}

// Cache exposes the underlying cache for the debug API.
func (r *Resolver) Cache() *Cache {
	return r.cache
}
