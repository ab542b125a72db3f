package models

// OverallGroup is the group name used for episodes that belong to no group.
const OverallGroup = "all"

// ScoreBook accumulates per-episode ScoreResults into per-group, per-metric
// ScoreCollections. Groups are kept in first-seen order. A ScoreBook is owned
// by a single goroutine.
type ScoreBook struct {
	groups []string
	scores map[string]map[string]ScoreCollection
	counts map[string]int
}

// NewScoreBook returns an empty ScoreBook.
func NewScoreBook() *ScoreBook {
	return &ScoreBook{
		scores: make(map[string]map[string]ScoreCollection),
		counts: make(map[string]int),
	}
}

// Add appends every metric of result to the collections of group.
func (b *ScoreBook) Add(group string, result ScoreResult) {
	if group == "" {
		group = OverallGroup
	}
	byMetric, ok := b.scores[group]
	if !ok {
		byMetric = make(map[string]ScoreCollection)
		b.scores[group] = byMetric
		b.groups = append(b.groups, group)
	}
	for metric, v := range result {
		byMetric[metric] = append(byMetric[metric], v)
	}
	b.counts[group]++
}

// Groups returns group names in first-seen order.
func (b *ScoreBook) Groups() []string {
	out := make([]string, len(b.groups))
	copy(out, b.groups)
	return out
}

// Episodes returns how many results were added to group.
func (b *ScoreBook) Episodes(group string) int {
	return b.counts[group]
}

// Total returns how many results were added across all groups.
func (b *ScoreBook) Total() int {
	n := 0
	for _, c := range b.counts {
		n += c
	}
	return n
}

// Collection returns the scores of metric within group. The returned slice is
// a copy.
func (b *ScoreBook) Collection(group, metric string) ScoreCollection {
	src := b.scores[group][metric]
	out := make(ScoreCollection, len(src))
	copy(out, src)
	return out
}

// All concatenates the scores of metric across every group in group order.
func (b *ScoreBook) All(metric string) ScoreCollection {
	var out ScoreCollection
	for _, g := range b.groups {
		out = append(out, b.scores[g][metric]...)
	}
	return out
}

// ByGroup returns a copy of the scores of metric keyed by group.
func (b *ScoreBook) ByGroup(metric string) map[string]ScoreCollection {
	out := make(map[string]ScoreCollection, len(b.groups))
	for _, g := range b.groups {
		out[g] = b.Collection(g, metric)
	}
	return out
}
