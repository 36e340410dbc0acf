package corpus

import "time"

// Document is one policy document from the policy index.
type Document struct {
	ID                 string    `json:"id"`
	Title              string    `json:"name"`
	Category           string    `json:"category_name"`
	Author             string    `json:"author_name"`
	ApplicabilityGroup string    `json:"applicability_group_name"`
	Text               string    `json:"text_preview"`
	URL                string    `json:"policystat_url_direct,omitempty"`
	RefreshedAt        time.Time `json:"refreshed_at"`
}

type ObjectKind string

const (
	KindTable     ObjectKind = "table"
	KindView      ObjectKind = "view"
	KindProcedure ObjectKind = "procedure"
)

type Column struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Nullable    bool   `json:"nullable"`
	Description string `json:"description,omitempty"`
}

// SchemaObject describes a table, view or procedure of the metadata source.
type SchemaObject struct {
	ID          string     `json:"id"`
	Database    string     `json:"database"`
	Schema      string     `json:"schema"`
	Kind        ObjectKind `json:"kind"`
	Name        string     `json:"name"`
	Columns     []Column   `json:"columns,omitempty"`
	Definition  string     `json:"definition,omitempty"`
	Description string     `json:"description,omitempty"`
}

func (o SchemaObject) QualifiedName() string {
	if o.Schema == "" {
		return o.Name
	}
	return o.Schema + "." + o.Name
}

// DocFile is one file of the auxiliary documentation tree.
type DocFile struct {
	ID      string    `json:"id"` // path relative to the documentation root
	Title   string    `json:"title"`
	Text    string    `json:"text"`
	ModTime time.Time `json:"mod_time"`
}

// Origin records where a snapshot's content came from.
type Origin string

const (
	OriginLive  Origin = "live"
	OriginCache Origin = "cache"
	OriginMock  Origin = "mock"
)

// Snapshot is an immutable corpus version. Readers must not modify Items.
type Snapshot[T any] struct {
	Items       []T
	Origin      Origin
	RefreshedAt time.Time
}
