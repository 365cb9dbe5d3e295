package reel

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/reelworks/reel-agent/internal/platform"
)

// ReadCache holds the three independently cacheable platform reads per
// reel: metadata, version history, and transcript. Each mutation
// invalidates exactly the keys it affects; over-invalidation is tolerated,
// under-invalidation is a correctness bug.
type ReadCache struct {
	cache *gocache.Cache
}

func NewReadCache(ttl time.Duration) *ReadCache {
	return &ReadCache{
		cache: gocache.New(ttl, 2*ttl),
	}
}

func reelKey(id string) string       { return "reel:" + id }
func versionsKey(id string) string   { return "versions:" + id }
func transcriptKey(id string) string { return "transcript:" + id }

func (c *ReadCache) GetReel(id string) (*platform.ReelMetadata, bool) {
	if v, ok := c.cache.Get(reelKey(id)); ok {
		return v.(*platform.ReelMetadata), true
	}
	return nil, false
}

func (c *ReadCache) SetReel(id string, reel *platform.ReelMetadata) {
	c.cache.SetDefault(reelKey(id), reel)
}

func (c *ReadCache) GetVersions(id string) ([]*platform.ReelVersion, bool) {
	if v, ok := c.cache.Get(versionsKey(id)); ok {
		return v.([]*platform.ReelVersion), true
	}
	return nil, false
}

func (c *ReadCache) SetVersions(id string, versions []*platform.ReelVersion) {
	c.cache.SetDefault(versionsKey(id), versions)
}

func (c *ReadCache) GetTranscript(id string) (*platform.Transcript, bool) {
	if v, ok := c.cache.Get(transcriptKey(id)); ok {
		return v.(*platform.Transcript), true
	}
	return nil, false
}

func (c *ReadCache) SetTranscript(id string, transcript *platform.Transcript) {
	c.cache.SetDefault(transcriptKey(id), transcript)
}

func (c *ReadCache) InvalidateReel(id string) {
	c.cache.Delete(reelKey(id))
}

func (c *ReadCache) InvalidateVersions(id string) {
	c.cache.Delete(versionsKey(id))
}

func (c *ReadCache) InvalidateTranscript(id string) {
	c.cache.Delete(transcriptKey(id))
}
