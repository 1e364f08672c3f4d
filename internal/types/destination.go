package types

// FieldType is the destination-side type of a schema field.
type FieldType string

const (
	FieldText    FieldType = "text"
	FieldDate    FieldType = "date"
	FieldDecimal FieldType = "decimal"
	FieldInteger FieldType = "integer"
	FieldTable   FieldType = "table"
)

// FieldDescriptor describes one field of a destination repository schema.
type FieldDescriptor struct {
	Name      string    `json:"name"`
	Type      FieldType `json:"type"`
	Required  bool      `json:"required"`
	MaxLength int       `json:"max_length,omitempty"`
}

// DestinationSchema is the live schema of a destination repository.
// Fetched fresh per session and never persisted long-term; declaration
// order is meaningful for mapping tie-breaks.
type DestinationSchema struct {
	TargetID string            `json:"target_id"`
	Fields   []FieldDescriptor `json:"fields"`
}

// FieldMapping is the per tenant+connector map from extraction field
// names to destination field names, plus the table columns populated for
// a repeating-table destination field.
type FieldMapping struct {
	TenantID  string            `json:"tenant_id"`
	Connector string            `json:"connector"`
	Fields    map[string]string `json:"fields"` // extraction name -> destination name
	TableCols []string          `json:"table_cols,omitempty"`
}
