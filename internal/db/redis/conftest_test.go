package redis

import "github.com/clearhelm/kbsearch/internal/db"

// testIndexDef mirrors the KB article schema used by the dense repository.
var testIndexDef = db.IndexDefinition{
	Name:     "kb:idx",
	Prefixes: []string{"kb:doc:"},
	Fields: []db.IndexField{
		{Name: "region", Type: db.IndexFieldTag},
		{Name: "product_version", Type: db.IndexFieldTag},
		{Name: "category", Type: db.IndexFieldTag},
		{Name: "deprecated", Type: db.IndexFieldTag},
		{Name: "error_codes", Type: db.IndexFieldTag, TagSeparator: ","},
		{Name: "effective_date", Type: db.IndexFieldNumeric},
		{Name: "vector", Type: db.IndexFieldVector, VectorDim: 4},
	},
}
