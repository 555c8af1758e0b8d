package models

// ExtractionCandidate is the raw value one cascade strategy produced. An empty Value means absent.
type ExtractionCandidate struct {
	Strategy string
	Value    string
}

// Found reports whether the strategy produced anything.
func (c ExtractionCandidate) Found() bool {
	return c.Value != ""
}
