// Package geoip classifies IP addresses against a local MaxMind-format
// ownership database. Lookups are pure reads; no network I/O is performed.
package geoip

import (
	"net"
	"strings"
	"sync"

	"github.com/apex/log"
	"github.com/oschwald/maxminddb-golang"
)

// targetOrgKeywords identify the expected legitimate owner of the
// verification domain's answers. Matching is deliberately permissive
// substring matching, not verification.
var targetOrgKeywords = []string{
	"google", "google llc", "google cloud", "google.com", "alphabet", "gcp",
}

// ownershipRecord carries the organization fields consulted for
// classification.
type ownershipRecord struct {
	ASOrganization string `maxminddb:"autonomous_system_organization"`
	Organization   string `maxminddb:"organization"`
	ISP            string `maxminddb:"isp"`
}

// Classifier answers whether an IP address belongs to the expected target
// organization. The database opens lazily on first use; concurrent first
// callers block on a single initializer and all observe the same handle.
// When the database is missing or unreadable the classifier stays degraded
// for the rest of the run and every call returns false.
type Classifier struct {
	path string
	once sync.Once
	db   *maxminddb.Reader
}

// NewClassifier returns a classifier backed by the database at path. The
// file is not touched until the first lookup.
func NewClassifier(path string) *Classifier {
	return &Classifier{path: path}
}

// IsTargetOrg reports whether ip's recorded organization/ISP text contains
// any of the target keywords. Unknown addresses, lookup errors, and a
// degraded classifier all report false.
func (c *Classifier) IsTargetOrg(ip string) bool {
	c.once.Do(c.open)
	if c.db == nil {
		return false
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	var rec ownershipRecord
	if err := c.db.Lookup(parsed, &rec); err != nil {
		return false
	}
	return matchesTargetOrg(rec.ASOrganization + " " + rec.Organization + " " + rec.ISP)
}

func (c *Classifier) open() {
	if c.path == "" {
		return
	}
	db, err := maxminddb.Open(c.path)
	if err != nil {
		log.WithError(err).WithField("path", c.path).
			Warn("ownership database unavailable, pollution checks degraded")
		return
	}
	c.db = db
}

// Close releases the database handle, if one was opened.
func (c *Classifier) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// matchesTargetOrg checks the lowercased organization text for any target
// keyword.
func matchesTargetOrg(orgText string) bool {
	orgText = strings.ToLower(orgText)
	for _, keyword := range targetOrgKeywords {
		if strings.Contains(orgText, keyword) {
			return true
		}
	}
	return false
}
