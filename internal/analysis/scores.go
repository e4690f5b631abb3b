package analysis

import (
	"sort"

	"github.com/SAP-F-2025/exam-analysis-service/internal/models"
	"gonum.org/v1/gonum/stat"
)

// ScoreGroups collects raw answer scores per category and remembers the
// order in which categories were first seen.
type ScoreGroups struct {
	order  []string
	scores map[string][]float64
}

func NewScoreGroups() *ScoreGroups {
	return &ScoreGroups{scores: make(map[string][]float64)}
}

func (g *ScoreGroups) Add(name string, score float64) {
	if _, ok := g.scores[name]; !ok {
		g.order = append(g.order, name)
	}
	g.scores[name] = append(g.scores[name], score)
}

func (g *ScoreGroups) Names() []string {
	return g.order
}

func (g *ScoreGroups) Values(name string) []float64 {
	return g.scores[name]
}

func (g *ScoreGroups) Len() int {
	return len(g.order)
}

// FormatScores converts each category to sum/(count*scale)*100 and ranks the
// result descending. Ties keep encounter order.
func FormatScores(groups *ScoreGroups, scale int) []models.ScoreEntry {
	entries := make([]models.ScoreEntry, 0, groups.Len())
	for _, name := range groups.order {
		entries = append(entries, models.NewScoreEntry(name, scorePercentage(groups.scores[name], scale)))
	}
	return SortScores(entries)
}

// SortScores sorts in place, descending by percentage, and returns the slice.
func SortScores(entries []models.ScoreEntry) []models.ScoreEntry {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Percentage > entries[j].Percentage
	})
	return entries
}

// MergeScoreLists averages percentages by name across the lists that contain
// that name. Names keep first-seen order; a name absent from a list does not
// count as zero.
func MergeScoreLists(lists ...[]models.ScoreEntry) []models.ScoreEntry {
	groups := NewScoreGroups()
	for _, list := range lists {
		for _, entry := range list {
			groups.Add(entry.Name, entry.Percentage)
		}
	}

	merged := make([]models.ScoreEntry, 0, groups.Len())
	for _, name := range groups.order {
		merged = append(merged, models.NewScoreEntry(name, stat.Mean(groups.scores[name], nil)))
	}
	return merged
}

func scorePercentage(scores []float64, scale int) float64 {
	if len(scores) == 0 || scale <= 0 {
		return 0
	}
	var total float64
	for _, s := range scores {
		total += s
	}
	return total / float64(len(scores)*scale) * 100
}

// sampleStdDev is the n-1 standard deviation, zero below two values.
func sampleStdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	return models.Round2(stat.StdDev(values, nil))
}

func variance(values []float64) models.ScoreVariance {
	if len(values) == 0 {
		return models.ScoreVariance{}
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	return models.ScoreVariance{
		Min:    models.Round2(lo),
		Max:    models.Round2(hi),
		StdDev: sampleStdDev(values),
	}
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}
