package analysis

import (
	"math"
	"sort"

	"github.com/SAP-F-2025/exam-analysis-service/internal/models"
	"gonum.org/v1/gonum/stat"
)

// SubStrandCorrelation summarises how one sub-strand moves with the others.
type SubStrandCorrelation struct {
	Name                  string  `json:"name"`
	AverageCorrelation    float64 `json:"average_correlation"`
	StrongestNegativePair string  `json:"strongest_negative_pair"`
	Correlation           float64 `json:"correlation"`
}

type correlatedPartner struct {
	name string
	r    float64
}

// FlagSubStrandCorrelations mines Pearson correlations between every pair of
// sub-strands across students. A pair needs enough students holding both
// values and non-constant columns. Weak and perfect correlations are dropped.
// The result is ordered ascending by average correlation.
func FlagSubStrandCorrelations(perfs []*models.StudentPerformance, opts Options) []SubStrandCorrelation {
	opts = opts.Normalize()

	rows := make([]map[string]float64, 0, len(perfs))
	nameSet := make(map[string]struct{})
	for _, p := range perfs {
		row := make(map[string]float64)
		for _, s := range p.StrandScores {
			for _, sub := range s.SubStrands {
				row[sub.Name] = sub.Percentage
				nameSet[sub.Name] = struct{}{}
			}
		}
		rows = append(rows, row)
	}

	names := make([]string, 0, len(nameSet))
	for name := range nameSet {
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) < 2 {
		return []SubStrandCorrelation{}
	}

	var order []string
	partners := make(map[string][]correlatedPartner)
	record := func(name string, partner correlatedPartner) {
		if _, ok := partners[name]; !ok {
			order = append(order, name)
		}
		partners[name] = append(partners[name], partner)
	}

	for i := 0; i < len(names); i++ {
		for j := i + 1; j < len(names); j++ {
			r, ok := pairCorrelation(rows, names[i], names[j], opts.CorrelationMinRows)
			if !ok {
				continue
			}
			r = models.Round2(r)
			if math.Abs(r) < opts.CorrelationMinAbs || r == 1.0 {
				continue
			}
			record(names[i], correlatedPartner{name: names[j], r: r})
			record(names[j], correlatedPartner{name: names[i], r: r})
		}
	}

	result := make([]SubStrandCorrelation, 0, len(order))
	for _, name := range order {
		related := partners[name]
		values := make([]float64, len(related))
		strongest := related[0]
		for k, p := range related {
			values[k] = p.r
			if p.r < strongest.r {
				strongest = p
			}
		}
		result = append(result, SubStrandCorrelation{
			Name:                  name,
			AverageCorrelation:    models.Round2(mean(values)),
			StrongestNegativePair: strongest.name,
			Correlation:           strongest.r,
		})
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].AverageCorrelation < result[j].AverageCorrelation
	})
	return result
}

func pairCorrelation(rows []map[string]float64, a, b string, minRows int) (float64, bool) {
	var xs, ys []float64
	for _, row := range rows {
		x, okX := row[a]
		y, okY := row[b]
		if okX && okY {
			xs = append(xs, x)
			ys = append(ys, y)
		}
	}
	if len(xs) < minRows || isConstant(xs) || isConstant(ys) {
		return 0, false
	}
	r := stat.Correlation(xs, ys, nil)
	if math.IsNaN(r) {
		return 0, false
	}
	return r, true
}

func isConstant(values []float64) bool {
	for _, v := range values[1:] {
		if v != values[0] {
			return false
		}
	}
	return true
}
