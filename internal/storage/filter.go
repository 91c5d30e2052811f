package storage

import (
	"math"
	"path"
	"sort"
	"strings"

	"github.com/a2arium/memflow/internal/embedding"
)

// MatchRecord reports whether rec satisfies every filter of q. Vector
// similarity is an ordering concern and is not checked here. Adapters that
// filter in their backend's query language only delegate the parts the
// backend cannot express.
func MatchRecord(rec *Record, q Query) bool {
	if rec == nil {
		return false
	}
	if q.AgentID != "" && rec.AgentID != q.AgentID {
		return false
	}
	if q.KeyPattern != "" {
		ok, err := path.Match(q.KeyPattern, rec.Key)
		if err != nil || !ok {
			return false
		}
	}
	for _, tag := range q.Tags {
		if !hasTag(rec, tag) {
			return false
		}
	}
	if q.Text != "" && !strings.Contains(strings.ToLower(rec.Value), strings.ToLower(q.Text)) {
		return false
	}
	if !q.Since.IsZero() && rec.CreatedAt.Before(q.Since) {
		return false
	}
	return true
}

// RankRecords orders recs for q and applies the limit: most-similar first
// when q.Vector is set (records without embeddings sort last), newest
// first otherwise, with the key as the final tie-breaker so results are
// deterministic.
func RankRecords(recs []*Record, q Query) []*Record {
	if len(q.Vector) > 0 {
		scores := make(map[*Record]float64, len(recs))
		for _, rec := range recs {
			if len(rec.Embedding) == 0 {
				scores[rec] = math.Inf(-1)
				continue
			}
			scores[rec] = embedding.Cosine(q.Vector, rec.Embedding)
		}
		sort.SliceStable(recs, func(i, j int) bool {
			if scores[recs[i]] != scores[recs[j]] {
				return scores[recs[i]] > scores[recs[j]]
			}
			if !recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
				return recs[i].CreatedAt.After(recs[j].CreatedAt)
			}
			return recs[i].Key < recs[j].Key
		})
	} else {
		sort.SliceStable(recs, func(i, j int) bool {
			if !recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
				return recs[i].CreatedAt.After(recs[j].CreatedAt)
			}
			return recs[i].Key < recs[j].Key
		})
	}

	if q.Limit > 0 && len(recs) > q.Limit {
		recs = recs[:q.Limit]
	}
	return recs
}

func hasTag(rec *Record, tag string) bool {
	for _, t := range rec.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
