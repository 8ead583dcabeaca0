package manifest

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Cache memoizes parsed contracts keyed by origin. Keys are compared exactly
// as provided; scheme, host and port must all match. Two concurrent misses
// for the same origin may both fetch and both write; contracts are
// idempotent per origin, so last write wins.
type Cache struct {
	mu        sync.RWMutex
	contracts map[string]*Contract
	logger    *logrus.Logger
}

// NewCache creates an empty contract cache.
func NewCache(logger *logrus.Logger) *Cache {
	if logger == nil {
		logger = logrus.New()
	}

	return &Cache{
		contracts: make(map[string]*Contract),
		logger:    logger,
	}
}

// Get returns the cached contract for origin, if any.
func (c *Cache) Get(origin string) (*Contract, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	contract, ok := c.contracts[origin]
	return contract, ok
}

// Put stores a contract for origin.
func (c *Cache) Put(origin string, contract *Contract) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.contracts[origin] = contract
}

// Invalidate clears all cached contracts.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.contracts) > 0 {
		c.logger.Debugf("Invalidating %d cached contracts", len(c.contracts))
	}
	c.contracts = make(map[string]*Contract)
}

// Snapshot returns a copy of the cached contracts keyed by origin, for the
// debug API.
func (c *Cache) Snapshot() map[string]*Contract {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]*Contract, len(c.contracts))
	for origin, contract := range c.contracts {
		out[origin] = contract
	}
	return out
}
