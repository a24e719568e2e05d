package models

import "strings"

const (
	// UntargetedSegment is the reserved segment for ads shown regardless of
	// the user's interests.
	UntargetedSegment = "untargeted"
	// SegmentDelimiter separates a parent segment from its child.
	SegmentDelimiter = "-"
)

// SegmentList is an ordered list of segments, most relevant first.
type SegmentList []string

// NormalizeSegment lower-cases and trims a segment so catalog and user model
// segments compare equal.
func NormalizeSegment(segment string) string {
	return strings.ToLower(strings.TrimSpace(segment))
}

// ParentSegment truncates a hierarchical segment at the first delimiter.
// "technology & computing-software" becomes "technology & computing"; a
// segment without a delimiter is its own parent.
func ParentSegment(segment string) string {
	if i := strings.Index(segment, SegmentDelimiter); i > 0 {
		return segment[:i]
	}
	return segment
}

// Top returns at most n segments, preserving order. n <= 0 returns the whole list.
func (l SegmentList) Top(n int) SegmentList {
	if n <= 0 || len(l) <= n {
		return l
	}
	return l[:n]
}

// Parents derives the parent of every segment, keeping first-seen order and
// dropping duplicates.
func (l SegmentList) Parents() SegmentList {
	seen := make(map[string]struct{}, len(l))
	var out SegmentList
	for _, s := range l {
		p := ParentSegment(s)
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

// Normalized returns a copy with every segment normalized and empty or
// duplicate entries removed.
func (l SegmentList) Normalized() SegmentList {
	seen := make(map[string]struct{}, len(l))
	var out SegmentList
	for _, s := range l {
		n := NormalizeSegment(s)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
