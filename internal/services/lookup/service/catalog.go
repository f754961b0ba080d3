package service

import (
	"sort"
	"strings"
	"sync"

	"rollcall/internal/core/normalize"
	"rollcall/internal/platform/metrics"
	"rollcall/internal/services/lookup/domain"
)

// minSubstring keeps one and two letter inputs out of containment matching
const minSubstring = 3

// maxSamples bounds the fallback values kept per table
const maxSamples = 5

type tableIndex struct {
	byKey map[string]domain.Code
	keys  []string
}

// Catalog is the loaded reference data. Lookups never mutate the reference
// maps; only fallback statistics change after construction.
type Catalog struct {
	tables  map[domain.Table]*tableIndex
	wards   map[string]domain.Geo
	special map[string]domain.Code

	mu        sync.Mutex
	fallbacks map[domain.Table]*domain.FallbackStat
}

var _ domain.Resolver = (*Catalog)(nil)

// NewCatalog indexes a snapshot
func NewCatalog(s domain.Snapshot) *Catalog {
	c := &Catalog{
		tables:    make(map[domain.Table]*tableIndex, len(domain.Tables)),
		wards:     make(map[string]domain.Geo, len(s.Wards)),
		special:   make(map[string]domain.Code, len(s.Special)),
		fallbacks: map[domain.Table]*domain.FallbackStat{},
	}
	for _, code := range s.Codes {
		ti := c.tables[code.Table]
		if ti == nil {
			ti = &tableIndex{byKey: map[string]domain.Code{}}
			c.tables[code.Table] = ti
		}
		for _, k := range []string{normalize.Fold(code.Label), normalize.Fold(code.Code)} {
			if k == "" {
				continue
			}
			if _, dup := ti.byKey[k]; !dup {
				ti.byKey[k] = code
				ti.keys = append(ti.keys, k)
			}
		}
	}
	for _, ti := range c.tables {
		// longest first, then lexicographic, so substring matching is deterministic
		sort.Slice(ti.keys, func(i, j int) bool {
			if len(ti.keys[i]) != len(ti.keys[j]) {
				return len(ti.keys[i]) > len(ti.keys[j])
			}
			return ti.keys[i] < ti.keys[j]
		})
	}
	for _, g := range s.Wards {
		c.wards[strings.TrimSpace(g.Ward)] = g
	}
	for _, sp := range s.Special {
		c.special[strings.TrimSpace(sp.Code)] = sp
	}
	return c
}

// Resolve maps free text onto a reference row: exact, then the variation
// dictionary, then containment against known keys, then def
func (c *Catalog) Resolve(table domain.Table, raw, def string) domain.Resolution {
	key := normalize.Fold(raw)
	ti := c.tables[table]

	if key != "" && ti != nil {
		if code, ok := ti.byKey[key]; ok {
			return resolution(code, domain.MatchExact)
		}
		if v, ok := domain.Variations[table][key]; ok {
			if code, ok := ti.byKey[normalize.Fold(v)]; ok {
				return resolution(code, domain.MatchVariation)
			}
		}
		if len(key) >= minSubstring {
			for _, k := range ti.keys {
				if len(k) < minSubstring {
					continue
				}
				if strings.Contains(key, k) || strings.Contains(k, key) {
					return resolution(ti.byKey[k], domain.MatchSubstring)
				}
			}
		}
	}

	if key != "" {
		c.recordFallback(table, raw)
	}
	out := domain.Resolution{Label: def, Match: domain.MatchFallback}
	if ti != nil {
		if code, ok := ti.byKey[normalize.Fold(def)]; ok {
			out.ID, out.Code, out.Label = code.ID, code.Code, code.Label
		}
	}
	return out
}

func resolution(c domain.Code, m domain.Match) domain.Resolution {
	return domain.Resolution{ID: c.ID, Code: c.Code, Label: c.Label, Match: m}
}

func (c *Catalog) recordFallback(table domain.Table, raw string) {
	metrics.LookupFallbacks.WithLabelValues(string(table)).Inc()

	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.fallbacks[table]
	if st == nil {
		st = &domain.FallbackStat{}
		c.fallbacks[table] = st
	}
	st.Count++
	if len(st.Samples) < maxSamples {
		v := normalize.Cell(raw)
		for _, s := range st.Samples {
			if s == v {
				return
			}
		}
		st.Samples = append(st.Samples, v)
	}
}

// Fallbacks returns a copy of the per table fallback statistics
func (c *Catalog) Fallbacks() map[domain.Table]domain.FallbackStat {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[domain.Table]domain.FallbackStat, len(c.fallbacks))
	for t, st := range c.fallbacks {
		out[t] = domain.FallbackStat{Count: st.Count, Samples: append([]string(nil), st.Samples...)}
	}
	return out
}

// Hierarchy returns the municipality, district and province of a ward
func (c *Catalog) Hierarchy(ward string) (domain.Geo, bool) {
	g, ok := c.wards[strings.TrimSpace(ward)]
	return g, ok
}

// IsSpecial reports whether code is a non geographic voting district code
func (c *Catalog) IsSpecial(code string) bool {
	code = strings.TrimSpace(code)
	if _, ok := c.special[code]; ok {
		return true
	}
	return domain.IsSentinelCode(code)
}
