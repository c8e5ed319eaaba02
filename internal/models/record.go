package models

// Record is one collected item, a post or search result. Sources attach
// whatever attributes they have; only the URL field is required because it
// is the identity key used for deduplication.
type Record map[string]string

// Well-known record fields shared by both sources
const (
	FieldURL      = "url"
	FieldText     = "text"
	FieldAuthor   = "author"
	FieldDate     = "date"
	FieldSource   = "source"
	FieldTitle    = "title"
	FieldSnippet  = "snippet"
	FieldLikes    = "likes"
	FieldReplies  = "replies"
	FieldReposts  = "reposts"
)

// URL returns the record's raw identity field, empty when absent
func (r Record) URL() string {
	return r[FieldURL]
}

// Text returns the record's free-text field, scanned for hashtags during
// discovery. Falls back to the snippet field for search results.
func (r Record) Text() string {
	if t := r[FieldText]; t != "" {
		return t
	}
	return r[FieldSnippet]
}
