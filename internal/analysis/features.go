package analysis

import (
	"sort"
	"strconv"

	"github.com/SAP-F-2025/exam-analysis-service/internal/models"
)

// Feature column prefixes. Columns in each family are sorted lexically.
const (
	skillPrefix     = "Skill-"
	gradePrefix     = "Grade-"
	strandPrefix    = "Strand-"
	subStrandPrefix = "SubStrand-"
	bestQPrefix     = "BestQ-"
	worstQPrefix    = "WorstQ-"
)

var baseFeatures = []string{"avg_score", "completion_rate", "class_avg_difference"}

// FeatureMatrix is one row per student performance, in input order.
type FeatureMatrix struct {
	Columns    []string
	Rows       [][]float64
	SessionIDs []uint
}

// ExtractFeatures builds the exam-specific feature space from the union of
// every student's breakdowns. Missing scores are zero and best/worst
// question columns are binary.
func ExtractFeatures(perfs []*models.StudentPerformance) FeatureMatrix {
	skills, grades, strands, subs := columnSet{}, columnSet{}, columnSet{}, columnSet{}
	best, worst := columnSet{}, columnSet{}

	for _, p := range perfs {
		for _, e := range p.BloomSkillScores {
			skills.add(skillPrefix + e.Name)
		}
		for _, e := range p.GradeScores {
			grades.add(gradePrefix + e.Name)
		}
		for _, s := range p.StrandScores {
			strands.add(strandPrefix + s.Name)
			for _, sub := range s.SubStrands {
				subs.add(subStrandPrefix + sub.Name)
			}
		}
		for _, id := range p.Best5QuestionIDs {
			best.add(bestQPrefix + strconv.FormatUint(uint64(id), 10))
		}
		for _, id := range p.Worst5QuestionIDs {
			worst.add(worstQPrefix + strconv.FormatUint(uint64(id), 10))
		}
	}

	columns := append([]string{}, baseFeatures...)
	for _, set := range []columnSet{skills, grades, strands, subs, best, worst} {
		columns = append(columns, set.sorted()...)
	}

	matrix := FeatureMatrix{
		Columns:    columns,
		Rows:       make([][]float64, 0, len(perfs)),
		SessionIDs: make([]uint, 0, len(perfs)),
	}
	for _, p := range perfs {
		values := make(map[string]float64)
		for _, e := range p.BloomSkillScores {
			values[skillPrefix+e.Name] = e.Percentage
		}
		for _, e := range p.GradeScores {
			values[gradePrefix+e.Name] = e.Percentage
		}
		for _, s := range p.StrandScores {
			values[strandPrefix+s.Name] = s.Percentage
			for _, sub := range s.SubStrands {
				values[subStrandPrefix+sub.Name] = sub.Percentage
			}
		}
		for _, id := range p.Best5QuestionIDs {
			values[bestQPrefix+strconv.FormatUint(uint64(id), 10)] = 1
		}
		for _, id := range p.Worst5QuestionIDs {
			values[worstQPrefix+strconv.FormatUint(uint64(id), 10)] = 1
		}
		values["avg_score"] = p.AvgScore
		values["completion_rate"] = p.CompletionRate
		values["class_avg_difference"] = p.ClassAvgDifference

		row := make([]float64, len(columns))
		for i, col := range columns {
			row[i] = values[col]
		}
		matrix.Rows = append(matrix.Rows, row)
		matrix.SessionIDs = append(matrix.SessionIDs, p.SessionID)
	}
	return matrix
}

type columnSet map[string]struct{}

func (c columnSet) add(name string) {
	c[name] = struct{}{}
}

func (c columnSet) sorted() []string {
	out := make([]string, 0, len(c))
	for name := range c {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
