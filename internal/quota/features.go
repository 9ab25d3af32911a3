package quota

// Feature is a gated action key. Counters are tracked per feature.
type Feature string

const (
	FeatureRegenerateIdea  Feature = "regenerate_idea"
	FeatureRewriteCaption  Feature = "rewrite_caption"
	FeatureRewordTitle     Feature = "reword_title"
	FeatureMoreHashtags    Feature = "more_hashtags"
	FeatureGuideAI         Feature = "guide_ai"
	FeatureHashtagResearch Feature = "hashtag_research"
)

// freeThresholds holds the number of free uses per feature before a
// subscription is required.
var freeThresholds = map[Feature]int{
	FeatureRegenerateIdea:  3,
	FeatureRewriteCaption:  3,
	FeatureRewordTitle:     2,
	FeatureMoreHashtags:    2,
	FeatureGuideAI:         1,
	FeatureHashtagResearch: 3,
}

// abuseResistant marks the features whose counters are double-written under
// a device-scoped key so signing out and back in cannot reset them.
var abuseResistant = map[Feature]bool{
	FeatureRegenerateIdea:  true,
	FeatureRewriteCaption:  true,
	FeatureHashtagResearch: true,
}

// Threshold returns the free-use threshold for a feature. Unknown features
// get zero free uses.
func Threshold(f Feature) int {
	return freeThresholds[f]
}

// AbuseResistant reports whether a feature uses the dual-write scheme.
func AbuseResistant(f Feature) bool {
	return abuseResistant[f]
}
