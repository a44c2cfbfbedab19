package cache

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trial-match-server/internal/domain"
)

var keyPattern = regexp.MustCompile(`^(search|trial)-[0-9a-f]{64}$`)

func TestSearchFingerprint_Deterministic(t *testing.T) {
	q := domain.TrialQuery{Condition: "type 2 diabetes", Keywords: "insulin", MaxResults: 20, RecruitingOnly: true}

	a := SearchFingerprint(q)
	b := SearchFingerprint(q)

	assert.Equal(t, a, b)
	assert.Regexp(t, keyPattern, a)
}

func TestSearchFingerprint_DistinctQueries(t *testing.T) {
	base := domain.TrialQuery{Condition: "asthma", Keywords: "", MaxResults: 20, RecruitingOnly: true}

	variants := []domain.TrialQuery{
		base,
		{Condition: "asthma", MaxResults: 21, RecruitingOnly: true},
		{Condition: "asthma", MaxResults: 20, RecruitingOnly: false},
		{Condition: "asthma", Keywords: "pediatric", MaxResults: 20, RecruitingOnly: true},
		{Keywords: "asthma", MaxResults: 20, RecruitingOnly: true},
		// concatenation of condition and keywords must not collide
		{Condition: "ab", Keywords: "c", MaxResults: 20},
		{Condition: "a", Keywords: "bc", MaxResults: 20},
		{Condition: `a"|keywords="b`, MaxResults: 20},
		{Condition: "a", Keywords: "b", MaxResults: 20},
	}

	seen := make(map[string]int)
	for i, q := range variants {
		key := SearchFingerprint(q)
		if j, dup := seen[key]; dup {
			t.Fatalf("queries %d and %d share fingerprint %s", j, i, key)
		}
		seen[key] = i
	}
}

func TestTrialFingerprint(t *testing.T) {
	assert.Equal(t, TrialFingerprint("NCT01234567"), TrialFingerprint("NCT01234567"))
	assert.NotEqual(t, TrialFingerprint("NCT01234567"), TrialFingerprint("NCT01234568"))
	assert.Regexp(t, keyPattern, TrialFingerprint("NCT01234567"))

	// a trial key never collides with a search key
	assert.NotEqual(t, TrialFingerprint("asthma"), SearchFingerprint(domain.TrialQuery{Condition: "asthma"}))
}
