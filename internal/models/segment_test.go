package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParentSegment(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"technology & computing-software", "technology & computing"},
		{"travel", "travel"},
		{"a-b-c", "a"},
		{"-leading", "-leading"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParentSegment(tt.in), tt.in)
	}
}

func TestSegmentListParentsDeduplicates(t *testing.T) {
	l := SegmentList{"sports-golf", "sports-tennis", "travel", "sports"}
	assert.Equal(t, SegmentList{"sports", "travel"}, l.Parents())
}

func TestSegmentListTop(t *testing.T) {
	l := SegmentList{"a", "b", "c", "d"}
	assert.Equal(t, SegmentList{"a", "b", "c"}, l.Top(3))
	assert.Equal(t, l, l.Top(0))
	assert.Equal(t, l, l.Top(10))
}

func TestSegmentListNormalized(t *testing.T) {
	l := SegmentList{" Sports ", "sports", "", "Travel-Europe"}
	assert.Equal(t, SegmentList{"sports", "travel-europe"}, l.Normalized())
}

func TestParseAdType(t *testing.T) {
	at, ok := ParseAdType("Notification_Ad")
	assert.True(t, ok)
	assert.Equal(t, AdTypeNotification, at)

	_, ok = ParseAdType("banner")
	assert.False(t, ok)
	assert.True(t, AdTypeInlineContent.RequiresDimensions())
	assert.False(t, AdTypeNewTabPage.RequiresDimensions())
}

func TestAdEventValidate(t *testing.T) {
	ad := CreativeAd{CreativeInstanceID: "ci", CreativeSetID: "cs", AdType: AdTypeNotification}
	ev := NewAdEvent(ad, "p1", ConfirmationServed, time.Unix(100, 0))
	assert.NoError(t, ev.Validate())

	ev.CreativeSetID = ""
	assert.ErrorIs(t, ev.Validate(), ErrInvalidAdEvent)
}
