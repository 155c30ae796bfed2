package textutil

// CosineSimilarity computes the cosine similarity between two fingerprints.
// Returns 0 if either fingerprint is nil or has zero norm.
func CosineSimilarity(a, b *Fingerprint) float64 {
	if a == nil || b == nil || a.norm == 0 || b.norm == 0 {
		return 0
	}
	var dot float64
	for token, count := range a.tokens {
		if other, ok := b.tokens[token]; ok {
			dot += count * other
		}
	}
	if dot == 0 {
		return 0
	}
	return dot / (a.norm * b.norm)
}

// MatchConfidence scores how well a catalog candidate, described by its
// artist and album name, matches a review title. 1 means every token agrees.
func MatchConfidence(title, artist, album string) float64 {
	return CosineSimilarity(NewFingerprint(title), NewFingerprint(artist+" "+album))
}
