package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/pulsewatch/airouter/pkg/core"
)

// Key computes the deterministic cache key for a query and its requested
// service set. The hash is pure, so keys are stable across restarts and
// shareable with external backing stores.
func Key(query string, services []core.ServiceID) string {
	ids := make([]string, len(services))
	for i, id := range services {
		ids[i] = string(id)
	}
	sort.Strings(ids)

	h := sha256.New()
	h.Write([]byte(normalizeQuery(query)))
	h.Write([]byte{'|'})
	h.Write([]byte(strings.Join(ids, ",")))
	return hex.EncodeToString(h.Sum(nil))
}

// normalizeQuery lowercases and collapses whitespace so trivially
// restated queries share an entry.
func normalizeQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}
