package models

// UserModel carries everything the eligibility pipeline knows about the user:
// the ranked interest segments produced by targeting and the location used for
// geo targeting. All fields may be empty.
type UserModel struct {
	// Segments is ranked by targeting-model confidence, most relevant first.
	Segments SegmentList `json:"segments"`
	// Country is an ISO 3166-1 alpha-2 code, e.g. "US".
	Country string `json:"country,omitempty"`
	// Region is an ISO 3166-2 subdivision code without the country prefix, e.g. "CA".
	Region string `json:"region,omitempty"`
}

// BrowsingHistory is a list of visited URLs, most recent first.
type BrowsingHistory []string
