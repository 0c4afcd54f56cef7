package experiment

// DecisionParams configures the promotion rule.
type DecisionParams struct {
	// PromotionThreshold is the confidence drop that judges an item mastered.
	PromotionThreshold float64
	// WarmupPresentations is the presentation count from which judging starts.
	WarmupPresentations int
}

// Decision is the outcome of scoring one trial.
type Decision struct {
	// Judged is false during warm-up; the session judge keeps its value.
	Judged bool
	Judge  Judge
	// LastConfidence is the item's new reference confidence.
	LastConfidence float64
}

// Decide applies the promotion rule to an item shown presentationCount times
// whose reference confidence is last and whose current trial scored
// confidence.
func Decide(presentationCount int, last, confidence float64, p DecisionParams) Decision {
	if presentationCount < p.WarmupPresentations {
		return Decision{LastConfidence: confidence}
	}
	if last-confidence > p.PromotionThreshold {
		return Decision{Judged: true, Judge: JudgePromote, LastConfidence: last}
	}
	return Decision{Judged: true, Judge: JudgeRetain, LastConfidence: confidence}
}

// Route picks the destination pool of a scored trial. Artifact trials
// (noWrite) route on correctness alone.
func Route(noWrite, correct bool, judge Judge) PoolName {
	if !correct {
		return PoolStudy
	}
	if noWrite || judge == JudgeRetain {
		return PoolQuiz
	}
	return PoolDone
}
