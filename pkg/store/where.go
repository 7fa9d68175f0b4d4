package store

// WhereField names the columns a git-history search predicate may reference.
type WhereField string

const (
	FieldDate          WhereField = "date"
	FieldAuthor        WhereField = "author"
	FieldFilePath      WhereField = "file_path"
	FieldCommitType    WhereField = "commit_type"
	FieldDecisionClass WhereField = "decision_class"
)

var knownFields = map[WhereField]bool{
	FieldDate:          true,
	FieldAuthor:        true,
	FieldFilePath:      true,
	FieldCommitType:    true,
	FieldDecisionClass: true,
}

// Clause is one ANDed equality/comparison clause in a structured predicate.
type Clause struct {
	Field WhereField
	Op    string // "=", ">=", "<=", "starts_with"
	Value string
}

// Where is an ANDed set of Clauses. A Where is validated once at
// construction so downstream backends never see an unknown field.
type Where struct {
	Clauses []Clause
}

// NewWhere validates clauses against the known field set, rejecting the
// whole predicate on the first unknown field so a malformed query never
// partially executes. Comparand values are passed through unescaped: every
// backend binds them as parameterized query arguments, never interpolates
// them into literal SQL text, so escaping here would only corrupt the value
// the backend is supposed to match against.
func NewWhere(clauses ...Clause) (*Where, error) {
	validated := make([]Clause, 0, len(clauses))

	for _, c := range clauses {
		if !knownFields[c.Field] {
			return nil, &ErrMalformedPredicate{Field: string(c.Field)}
		}

		validated = append(validated, c)
	}

	return &Where{Clauses: validated}, nil
}
