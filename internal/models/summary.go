package models

import "time"

// RunSummary is the machine-readable result of a scoring run.
type RunSummary struct {
	Timestamp time.Time `json:"timestamp"`
	// DurationMs is the wall time of the run in milliseconds.
	DurationMs int64 `json:"duration_ms"`
	// OfficialScore is the report label of the selected metric.
	OfficialScore string                        `json:"official_score"`
	Metric        string                        `json:"metric"`
	Interval      string                        `json:"interval"`
	Episodes      int                           `json:"episodes"`
	Results       []EpisodeResult               `json:"results,omitempty"`
	Failed        []EpisodeFailure              `json:"failed,omitempty"`
	Overall       map[string]AggregateStatistic `json:"overall"`
	Groups        []GroupSummary                `json:"groups,omitempty"`
	Artifacts     []VisualizationArtifact       `json:"artifacts,omitempty"`
}

// Official returns the overall statistic of the selected metric.
func (s *RunSummary) Official() AggregateStatistic {
	return s.Overall[s.OfficialScore]
}

// Scored returns the number of episodes with at least one score. An episode
// that failed only some metrics counts as scored and as failed.
func (s *RunSummary) Scored() int {
	n := 0
	for _, r := range s.Results {
		if len(r.Scores) > 0 {
			n++
		}
	}
	return n
}

// EpisodeResult holds the scores of one episode, or the reason it has none.
type EpisodeResult struct {
	Episode string      `json:"episode"`
	Group   string      `json:"group,omitempty"`
	Scores  ScoreResult `json:"scores,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// GroupSummary holds the aggregate statistics of one group.
type GroupSummary struct {
	Name     string                        `json:"name"`
	Episodes int                           `json:"episodes"`
	Stats    map[string]AggregateStatistic `json:"stats"`
}

// EpisodeFailure records an episode whose metrics could not all be computed.
type EpisodeFailure struct {
	Episode string `json:"episode"`
	Group   string `json:"group,omitempty"`
	Error   string `json:"error"`
}
