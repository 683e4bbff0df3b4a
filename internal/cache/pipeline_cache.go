// Package cache provides the process-wide memoization and transcript
// buffering used by the translation pipeline: a short-TTL cache for
// translation/TTS results (dedups repeated work across connections) and a
// Redis-backed buffer for per-meeting transcript archival.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"log"
	"sync"
	"time"
)

// Entry is one cached value with its expiration.
type Entry struct {
	Value     interface{}
	ExpiresAt time.Time
}

// PipelineCache memoizes translation and TTS results. Adapted directly from
// the teacher's TTL sync.Map cache design.
type PipelineCache struct {
	translationCache sync.Map // key: hash(text):srcLang:tgtLang -> string
	ttsCache         sync.Map // key: hash(text):lang -> []byte

	ttl             time.Duration
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
}

// Config controls cache TTL and cleanup cadence.
type Config struct {
	TTL             time.Duration
	CleanupInterval time.Duration
}

// DefaultConfig mirrors the teacher's defaults: 5 minute TTL, 1 minute sweep.
func DefaultConfig() *Config {
	return &Config{TTL: 5 * time.Minute, CleanupInterval: time.Minute}
}

// New creates a cache and starts its background cleanup loop.
func New(cfg *Config) *PipelineCache {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	c := &PipelineCache{
		ttl:             cfg.TTL,
		cleanupInterval: cfg.CleanupInterval,
		stopCleanup:     make(chan struct{}),
	}
	go c.cleanupLoop()
	log.Printf("[Cache] Initialized with TTL=%v, cleanup interval=%v", cfg.TTL, cfg.CleanupInterval)
	return c
}

func key(parts ...string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ":"
		}
		out += p
	}
	return out
}

func hashKey(text string) string {
	if len(text) <= 50 {
		return text
	}
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:8])
}

// GetTranslation returns a cached translation for (text, srcLang, tgtLang).
func (c *PipelineCache) GetTranslation(text, srcLang, tgtLang string) (string, bool) {
	k := key(hashKey(text), srcLang, tgtLang)
	if v, ok := c.translationCache.Load(k); ok {
		e := v.(*Entry)
		if time.Now().Before(e.ExpiresAt) {
			return e.Value.(string), true
		}
		c.translationCache.Delete(k)
	}
	return "", false
}

// SetTranslation stores a translation result.
func (c *PipelineCache) SetTranslation(text, srcLang, tgtLang, translated string) {
	k := key(hashKey(text), srcLang, tgtLang)
	c.translationCache.Store(k, &Entry{Value: translated, ExpiresAt: time.Now().Add(c.ttl)})
}

// GetTTS returns cached synthesized audio for (text, lang).
func (c *PipelineCache) GetTTS(text, lang string) ([]byte, bool) {
	k := key(hashKey(text), lang)
	if v, ok := c.ttsCache.Load(k); ok {
		e := v.(*Entry)
		if time.Now().Before(e.ExpiresAt) {
			return e.Value.([]byte), true
		}
		c.ttsCache.Delete(k)
	}
	return nil, false
}

// SetTTS stores synthesized audio.
func (c *PipelineCache) SetTTS(text, lang string, audio []byte) {
	k := key(hashKey(text), lang)
	c.ttsCache.Store(k, &Entry{Value: audio, ExpiresAt: time.Now().Add(c.ttl)})
}

func (c *PipelineCache) cleanupLoop() {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.stopCleanup:
			return
		}
	}
}

func (c *PipelineCache) sweep() {
	now := time.Now()
	removed := 0
	c.translationCache.Range(func(k, v interface{}) bool {
		if now.After(v.(*Entry).ExpiresAt) {
			c.translationCache.Delete(k)
			removed++
		}
		return true
	})
	c.ttsCache.Range(func(k, v interface{}) bool {
		if now.After(v.(*Entry).ExpiresAt) {
			c.ttsCache.Delete(k)
			removed++
		}
		return true
	})
	if removed > 0 {
		log.Printf("[Cache] Cleanup removed %d expired entries", removed)
	}
}

// Close stops the cleanup loop.
func (c *PipelineCache) Close() {
	close(c.stopCleanup)
}
