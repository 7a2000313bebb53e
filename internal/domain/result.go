package domain

// Sentiment is the closed set of labels the classifier may assign.
type Sentiment string

const (
	SentimentPositive    Sentiment = "Positive"
	SentimentNegative    Sentiment = "Negative"
	SentimentNeutral     Sentiment = "Neutral"
	SentimentMixed       Sentiment = "Mixed"
	SentimentUnavailable Sentiment = "Unavailable"
)

// ProcessingResult is one row of run output.
type ProcessingResult struct {
	SourceName  string    `json:"source_name"`
	Text        string    `json:"text"`
	FormatLabel string    `json:"format_label"`
	Sentiment   Sentiment `json:"sentiment"`
}

// NoticeKind classifies why an item produced a notice.
type NoticeKind string

const (
	NoticeStaging           NoticeKind = "staging"
	NoticeUnsupportedFormat NoticeKind = "unsupported_format"
	NoticeProvider          NoticeKind = "provider"
	NoticeEmptyResult       NoticeKind = "empty_result"
	NoticeRejectedUpload    NoticeKind = "rejected_upload"
)

// Notice is a user-visible report about one item: which file and why.
type Notice struct {
	SourceName string     `json:"source_name"`
	Kind       NoticeKind `json:"kind"`
	Cause      string     `json:"cause"`
}
