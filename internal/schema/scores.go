package schema

// GetScores returns the scores of d.
func (d DomainResult) GetScores() Scores {
	return Scores{d.ConfidenceScore, d.RelevanceScore, d.ClarityScore}
}

// SetScores replaces the scores of d.
func (d *DomainResult) SetScores(s Scores) {
	d.ConfidenceScore, d.RelevanceScore, d.ClarityScore = s.Confidence, s.Relevance, s.Clarity
}

// GetScores returns the scores of s.
func (s SubDomain) GetScores() Scores {
	return Scores{s.ConfidenceScore, s.RelevanceScore, s.ClarityScore}
}

// SetScores replaces the scores of s.
func (s *SubDomain) SetScores(sc Scores) {
	s.ConfidenceScore, s.RelevanceScore, s.ClarityScore = sc.Confidence, sc.Relevance, sc.Clarity
}

// GetScores returns the scores of t.
func (t Topic) GetScores() Scores {
	return Scores{t.ConfidenceScore, t.RelevanceScore, t.ClarityScore}
}

// SetScores replaces the scores of t.
func (t *Topic) SetScores(s Scores) {
	t.ConfidenceScore, t.RelevanceScore, t.ClarityScore = s.Confidence, s.Relevance, s.Clarity
}

// GetScores returns the scores of in.
func (in Instance) GetScores() Scores {
	return Scores{in.ConfidenceScore, in.RelevanceScore, in.ClarityScore}
}

// SetScores replaces the scores of in.
func (in *Instance) SetScores(s Scores) {
	in.ConfidenceScore, in.RelevanceScore, in.ClarityScore = s.Confidence, s.Relevance, s.Clarity
}

// GetScores returns the scores of ri.
func (ri RelationshipInstance) GetScores() Scores {
	return Scores{ri.ConfidenceScore, ri.RelevanceScore, ri.ClarityScore}
}

// SetScores replaces the scores of ri.
func (ri *RelationshipInstance) SetScores(s Scores) {
	ri.ConfidenceScore, ri.RelevanceScore, ri.ClarityScore = s.Confidence, s.Relevance, s.Clarity
}
