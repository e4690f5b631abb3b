// Package analysis derives student, class, question and cluster performance
// from scored exam answers. Everything here is pure computation; persistence
// and the generation collaborator live in the services layer.
package analysis

// Options tunes the analytical steps. Zero values are replaced by the defaults
// in DefaultOptions via Normalize.
type Options struct {
	ScoreScale         int
	Percentile         float64
	CorrelationMinAbs  float64
	CorrelationMinRows int
	PCAComponents      int
	MaxClusters        int
	Seed               uint64
	KMeansInits        int
	KMeansMaxIter      int
	TopQuestions       int
}

func DefaultOptions() Options {
	return Options{
		ScoreScale:         4,
		Percentile:         0.10,
		CorrelationMinAbs:  0.3,
		CorrelationMinRows: 3,
		PCAComponents:      3,
		MaxClusters:        6,
		Seed:               42,
		KMeansInits:        10,
		KMeansMaxIter:      300,
		TopQuestions:       5,
	}
}

// Normalize fills unset fields from DefaultOptions.
func (o Options) Normalize() Options {
	d := DefaultOptions()
	if o.ScoreScale <= 0 {
		o.ScoreScale = d.ScoreScale
	}
	if o.Percentile <= 0 || o.Percentile > 1 {
		o.Percentile = d.Percentile
	}
	if o.CorrelationMinAbs <= 0 {
		o.CorrelationMinAbs = d.CorrelationMinAbs
	}
	if o.CorrelationMinRows < 2 {
		o.CorrelationMinRows = d.CorrelationMinRows
	}
	if o.PCAComponents <= 0 {
		o.PCAComponents = d.PCAComponents
	}
	if o.MaxClusters < 2 {
		o.MaxClusters = d.MaxClusters
	}
	if o.KMeansInits <= 0 {
		o.KMeansInits = d.KMeansInits
	}
	if o.KMeansMaxIter <= 0 {
		o.KMeansMaxIter = d.KMeansMaxIter
	}
	if o.TopQuestions <= 0 {
		o.TopQuestions = d.TopQuestions
	}
	return o
}
