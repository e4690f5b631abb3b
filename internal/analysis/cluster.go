package analysis

import (
	"strconv"

	"github.com/SAP-F-2025/exam-analysis-service/internal/models"
	"gorm.io/datatypes"
)

// ClusterLabel names the cluster at ordinal idx: "Cluster A", "Cluster B", ...
func ClusterLabel(idx int) string {
	return "Cluster " + string(rune('A'+idx))
}

// Assignment is the outcome of clustering one exam's performances.
type Assignment struct {
	K       int
	Labels  []int
	Columns []string
}

// AssignClusters standardises the feature matrix, reduces it to principal
// components when it is wide, and picks k by the elbow of the inertia curve.
// It returns nil when there are fewer than two students or fewer than two
// distinct feature rows.
func AssignClusters(perfs []*models.StudentPerformance, opts Options) *Assignment {
	opts = opts.Normalize()
	n := len(perfs)
	if n < 2 {
		return nil
	}

	features := ExtractFeatures(perfs)
	rows := Standardize(features.Rows)
	if len(features.Columns) > opts.PCAComponents {
		rows = ReduceDimensions(rows, min(opts.PCAComponents, n))
	}

	unique := UniqueRows(rows)
	if unique < 2 {
		return nil
	}

	maxK := min(opts.MaxClusters, n, unique)
	ks := make([]int, 0, maxK-1)
	inertias := make([]float64, 0, maxK-1)
	fits := make(map[int]KMeansResult, maxK-1)
	for k := 2; k <= maxK; k++ {
		fit := KMeans(rows, k, opts.Seed, opts.KMeansInits, opts.KMeansMaxIter)
		ks = append(ks, k)
		inertias = append(inertias, fit.Inertia)
		fits[k] = fit
	}

	k := ElbowK(ks, inertias)
	return &Assignment{K: k, Labels: fits[k].Labels, Columns: features.Columns}
}

// ClusterPerformances groups students and aggregates each non-empty group.
func ClusterPerformances(examID uint, perfs []*models.StudentPerformance, opts Options) []*models.PerformanceCluster {
	opts = opts.Normalize()
	assignment := AssignClusters(perfs, opts)
	if assignment == nil {
		return nil
	}

	groups := make([][]*models.StudentPerformance, assignment.K)
	for i, label := range assignment.Labels {
		groups[label] = append(groups[label], perfs[i])
	}

	clusters := make([]*models.PerformanceCluster, 0, assignment.K)
	for idx, members := range groups {
		if len(members) == 0 {
			continue
		}
		cluster := AggregateCluster(members, opts)
		cluster.ExamID = examID
		cluster.ClusterLabel = ClusterLabel(idx)
		clusters = append(clusters, cluster)
	}
	return clusters
}

// AggregateCluster merges member performances the same way the class
// aggregate does.
func AggregateCluster(members []*models.StudentPerformance, opts Options) *models.PerformanceCluster {
	opts = opts.Normalize()

	scores := make([]float64, len(members))
	sessionIDs := make([]uint, len(members))
	levels := newCounter()
	best, worst := newCounter(), newCounter()
	blooms := make([][]models.ScoreEntry, len(members))
	grades := make([][]models.ScoreEntry, len(members))
	strands := make([][]models.StrandScore, len(members))
	for i, m := range members {
		scores[i] = m.AvgScore
		sessionIDs[i] = m.SessionID
		levels.add(string(m.AvgExpectationLevel))
		for _, id := range m.Best5QuestionIDs {
			best.add(strconv.FormatUint(uint64(id), 10))
		}
		for _, id := range m.Worst5QuestionIDs {
			worst.add(strconv.FormatUint(uint64(id), 10))
		}
		blooms[i] = m.BloomSkillScores
		grades[i] = m.GradeScores
		strands[i] = m.StrandScores
	}

	level := models.ExpectationUnclassified
	if mode := levels.mostCommon(1); len(mode) == 1 {
		level = models.ExpectationLevel(mode[0])
	}

	return &models.PerformanceCluster{
		ClusterSize:         len(members),
		StudentSessionIDs:   sessionIDs,
		AvgScore:            models.Percentage(mean(scores)),
		AvgExpectationLevel: level,
		BloomSkillScores:    SortScores(MergeScoreLists(blooms...)),
		GradeScores:         SortScores(MergeScoreLists(grades...)),
		StrandScores:        MergeStrandScores(strands...),
		TopBestQuestionIDs:  parseIDs(best.mostCommon(opts.TopQuestions)),
		TopWorstQuestionIDs: parseIDs(worst.mostCommon(opts.TopQuestions)),
		ScoreVariance:       datatypes.NewJSONType(variance(scores)),
	}
}

// MergeStrandScores averages strand breakdowns by strand name, merging the
// nested sub-strand and bloom skill rankings the same way.
func MergeStrandScores(lists ...[]models.StrandScore) []models.StrandScore {
	var order []string
	totals := NewScoreGroups()
	grades := make(map[string]int)
	subs := make(map[string][][]models.ScoreEntry)
	blooms := make(map[string][][]models.ScoreEntry)
	for _, list := range lists {
		for _, s := range list {
			if _, ok := grades[s.Name]; !ok {
				order = append(order, s.Name)
			}
			grades[s.Name] = s.Grade
			totals.Add(s.Name, s.Percentage)
			subs[s.Name] = append(subs[s.Name], s.SubStrands)
			blooms[s.Name] = append(blooms[s.Name], s.BloomSkills)
		}
	}

	merged := make([]models.StrandScore, 0, len(order))
	for _, name := range order {
		merged = append(merged, models.StrandScore{
			Name:        name,
			Grade:       grades[name],
			Percentage:  models.Percentage(mean(totals.Values(name))),
			SubStrands:  SortScores(MergeScoreLists(subs[name]...)),
			BloomSkills: SortScores(MergeScoreLists(blooms[name]...)),
		})
	}
	return merged
}

func parseIDs(values []string) []uint {
	ids := make([]uint, 0, len(values))
	for _, v := range values {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, uint(id))
	}
	return ids
}
