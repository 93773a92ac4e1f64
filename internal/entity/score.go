package entity

// ScoreBreakdown keeps one sub-score per scoring dimension so rescoring
// runs can be diffed field by field.
type ScoreBreakdown struct {
	Source       int `json:"source"`
	Completeness int `json:"completeness"`
	Message      int `json:"message"`
	Calculator   int `json:"calculator"`
	Engagement   int `json:"engagement"`
}

func (b ScoreBreakdown) Total() int {
	return b.Source + b.Completeness + b.Message + b.Calculator + b.Engagement
}
