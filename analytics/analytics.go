// Package analytics records blog page views as anonymous data points.
//
// A data point mirrors what edge analytics engines accept: a few string
// blobs, a few numeric doubles and one index used for sampling and
// grouping. Page views use blobs [slug, category, timestamp], doubles [1]
// and index slug.
package analytics

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
)

// DataPoint is one analytics event.
type DataPoint struct {
	Blobs   []string  `json:"blobs"`
	Doubles []float64 `json:"doubles"`
	Indexes []string  `json:"indexes"`
}

// Sink accepts data points.
type Sink interface {
	WriteDataPoint(ctx context.Context, dp DataPoint) error
}

// PostStat is the number of views of one post.
type PostStat struct {
	Slug     string `json:"slug"`
	Category string `json:"category"`
	Views    int    `json:"views"`
}

// DailyView is the number of views on one day.
type DailyView struct {
	Date  string `json:"date"`
	Views int    `json:"views"`
}

// salt holds the per-installation random salt for hashing, protected by sync.Once.
var salt struct {
	once  sync.Once
	value string
}

// InitSalt loads or generates a persistent salt for hashing visitor
// identifiers. Call it once at startup before any requests are served.
func InitSalt(store *Store) error {
	var initErr error
	salt.once.Do(func() {
		s, err := store.GetSetting("hash_salt")
		if err != nil {
			initErr = fmt.Errorf("read hash salt: %w", err)
			return
		}
		if s == "" {
			b := make([]byte, 32)
			if _, err := rand.Read(b); err != nil {
				initErr = fmt.Errorf("generate salt: %w", err)
				return
			}
			s = hex.EncodeToString(b)
			if err := store.SetSetting("hash_salt", s); err != nil {
				initErr = fmt.Errorf("store hash salt: %w", err)
				return
			}
		}
		salt.value = s
	})
	return initErr
}

// Hash returns a salted, truncated SHA-256 of v. Use it for anything that
// could identify a visitor before it is stored.
func Hash(v string) string {
	h := sha256.New()
	h.Write([]byte(salt.value + v))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

var botMarkers = []string{
	"bot", "crawler", "spider", "crawl", "slurp", "scrape",
	"googlebot", "bingbot", "yandex", "baidu", "duckduckbot",
	"facebookexternalhit", "twitterbot", "linkedinbot",
	"ahrefsbot", "semrushbot", "mj12bot", "dotbot",
	"headlesschrome", "lighthouse",
}

// IsBot checks if the User-Agent is likely a bot or crawler.
func IsBot(ua string) bool {
	if strings.TrimSpace(ua) == "" {
		return true
	}
	ua = strings.ToLower(ua)
	for _, bot := range botMarkers {
		if strings.Contains(ua, bot) {
			return true
		}
	}
	return false
}
