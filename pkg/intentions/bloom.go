package intentions

import (
	"hash/fnv"
	"math"
	"strings"
)

// KeywordBloomFilter is the tier-1 pre-screen (INT-06 in the original
// design): a fixed-size bit set with k independent FNV hashes, queried once
// per message before any keyword list is walked in full. No third-party
// Bloom filter package appears anywhere in the retrieved example corpus, so
// this stays on the standard library rather than reaching outside it.
type KeywordBloomFilter struct {
	bits []uint64
	k    int
}

// NewKeywordBloomFilter builds a filter sized for an expected keyword count,
// targeting a false-positive rate around 1%. bits and k are picked with the
// standard m = -n*ln(p)/ln(2)^2, k = m/n*ln(2) formulas with p = 0.01,
// rounded to sane bounds (at least 8 keywords, 256 bits and one hash) so
// small vocabularies still get a workable filter.
func NewKeywordBloomFilter(expectedKeywords int) *KeywordBloomFilter {
	if expectedKeywords < 8 {
		expectedKeywords = 8
	}
	const falsePositiveRate = 0.01
	n := float64(expectedKeywords)
	bitCount := int(math.Ceil(-n * math.Log(falsePositiveRate) / (math.Ln2 * math.Ln2)))
	words := (bitCount + 63) / 64
	if words < 4 {
		words = 4
	}
	k := int(math.Round(float64(bitCount) / n * math.Ln2))
	if k < 1 {
		k = 1
	}
	return &KeywordBloomFilter{bits: make([]uint64, words), k: k}
}

func (f *KeywordBloomFilter) hashes(s string) []uint64 {
	s = strings.ToLower(strings.TrimSpace(s))
	h1 := fnv.New64a()
	h1.Write([]byte(s))
	base := h1.Sum64()

	h2 := fnv.New64()
	h2.Write([]byte(s))
	step := h2.Sum64()
	if step == 0 {
		step = 1
	}

	out := make([]uint64, f.k)
	for i := 0; i < f.k; i++ {
		out[i] = base + uint64(i)*step
	}
	return out
}

func (f *KeywordBloomFilter) bitCount() uint64 { return uint64(len(f.bits)) * 64 }

// Add inserts keyword into the filter.
func (f *KeywordBloomFilter) Add(keyword string) {
	m := f.bitCount()
	for _, h := range f.hashes(keyword) {
		idx := h % m
		f.bits[idx/64] |= 1 << (idx % 64)
	}
}

// MightContain reports whether keyword may be present. False means
// definitely absent; true means maybe present (or a false positive).
func (f *KeywordBloomFilter) MightContain(keyword string) bool {
	m := f.bitCount()
	for _, h := range f.hashes(keyword) {
		idx := h % m
		if f.bits[idx/64]&(1<<(idx%64)) == 0 {
			return false
		}
	}
	return true
}

// AnyMightContain tiers a whole message: it tokenizes on whitespace and
// returns true as soon as one token might be a registered keyword, so the
// caller can skip the full keyword-list walk on a clean miss.
func (f *KeywordBloomFilter) AnyMightContain(message string) bool {
	for _, tok := range strings.Fields(message) {
		if f.MightContain(tok) {
			return true
		}
	}
	return false
}
