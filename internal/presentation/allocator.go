// Package presentation builds grounded slide decks from stored documents.
package presentation

// MinSlides is the smallest deck: title, one content slide and the conclusion.
const MinSlides = 3

// Plan maps topics to content slides. Each group holds indexes into the cleaned topic list;
// an empty group is rendered as a placeholder slide.
type Plan struct {
	Groups      [][]int
	TotalSlides int
}

// ContentSlides returns the number of content slides in the plan.
func (p Plan) ContentSlides() int {
	return len(p.Groups)
}

// Allocate assigns one topic per content slide. Topics beyond the content capacity
// (requested minus title and conclusion) are dropped, not merged.
func Allocate(topicCount, requestedSlides int) Plan {
	if requestedSlides < MinSlides {
		requestedSlides = MinSlides
	}
	capacity := requestedSlides - 2
	if topicCount <= 0 {
		return Plan{Groups: [][]int{{}}, TotalSlides: MinSlides}
	}
	n := topicCount
	if n > capacity {
		n = capacity
	}
	groups := make([][]int, n)
	for i := range groups {
		groups[i] = []int{i}
	}
	return Plan{Groups: groups, TotalSlides: n + 2}
}
