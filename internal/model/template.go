package model

// DefaultLocale is used when a request does not name one
const DefaultLocale = "en"

// Template is a stored message definition keyed by (ID, Locale).
// An empty Locale marks the default row of a template.
type Template struct {
	ID              string  `db:"id" json:"id" yaml:"id"`
	Name            string  `db:"name" json:"name" yaml:"name"`
	Locale          string  `db:"locale" json:"locale" yaml:"locale"`
	ChannelType     Channel `db:"channel_type" json:"channel_type" yaml:"channel_type"`
	SubjectTemplate *string `db:"subject_template" json:"subject_template,omitempty" yaml:"subject_template"`
	BodyTemplate    string  `db:"body_template" json:"body_template" yaml:"body_template"`
	Active          bool    `db:"active" json:"active" yaml:"active"`
}
