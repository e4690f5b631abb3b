package generation

import (
	"github.com/SAP-F-2025/exam-analysis-service/internal/models"
)

// PlanQuestions spreads count question numbers across the strands round-robin,
// cycling through each strand's sub-strands in turn, and groups the result per
// sub-strand. Each question gets a rotating window of bloomCount skills.
func PlanQuestions(strands []models.Strand, count, bloomCount int) []QuestionRequest {
	type slot struct {
		strand models.Strand
		sub    models.SubStrand
	}

	var groups [][]slot
	for _, s := range strands {
		var subs []slot
		for _, sub := range s.SubStrands {
			subs = append(subs, slot{strand: s, sub: sub})
		}
		if len(subs) > 0 {
			groups = append(groups, subs)
		}
	}
	if len(groups) == 0 || count <= 0 {
		return nil
	}
	bloomCount = min(max(bloomCount, 1), len(models.BloomSkills))

	index := make(map[uint]int)
	var requests []QuestionRequest
	cursor := make([]int, len(groups))
	for n := 1; n <= count; n++ {
		g := (n - 1) % len(groups)
		target := groups[g][cursor[g]%len(groups[g])]
		cursor[g]++

		i, ok := index[target.sub.ID]
		if !ok {
			i = len(requests)
			index[target.sub.ID] = i
			requests = append(requests, QuestionRequest{
				Grade:     target.strand.Grade,
				Strand:    target.strand.Name,
				SubStrand: target.sub.Name,
			})
		}
		requests[i].Questions = append(requests[i].Questions, PlannedQuestion{
			Number:      n,
			BloomSkills: bloomWindow(n-1, bloomCount),
		})
	}
	return requests
}

func bloomWindow(offset, size int) []string {
	skills := make([]string, size)
	for i := range skills {
		skills[i] = models.BloomSkills[(offset+i)%len(models.BloomSkills)]
	}
	return skills
}
