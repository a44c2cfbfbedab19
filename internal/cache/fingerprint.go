package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/trial-match-server/internal/domain"
)

// Fingerprint prefixes
const (
	SearchPrefix = "search"
	TrialPrefix  = "trial"
)

// SearchFingerprint derives the cache key for a registry search. Every field
// that changes the result is labelled and quoted, so "a"+"bc" and "ab"+"c"
// never share a key.
func SearchFingerprint(q domain.TrialQuery) string {
	canonical := strings.Join([]string{
		"condition=" + strconv.Quote(q.Condition),
		"keywords=" + strconv.Quote(q.Keywords),
		"max_results=" + strconv.Itoa(q.MaxResults),
		"recruiting_only=" + strconv.FormatBool(q.RecruitingOnly),
	}, "|")
	return hashKey(SearchPrefix, canonical)
}

// TrialFingerprint derives the cache key for a single trial lookup
func TrialFingerprint(nctID string) string {
	return hashKey(TrialPrefix, "nct_id="+strconv.Quote(nctID))
}

func hashKey(prefix, canonical string) string {
	sum := sha256.Sum256([]byte(canonical))
	return prefix + "-" + hex.EncodeToString(sum[:])
}
