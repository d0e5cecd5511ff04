package memdb

import (
	"maps"

	"github.com/hashicorp/go-memdb"
	"github.com/rs/zerolog"
)

const (
	tableItems = "items"

	indexID        = "id"
	indexPartition = "partition"
)

// Item is a row of a Table, addressed by its partition and sort keys.
type Item struct {
	PartitionKey string         `json:"partitionKey" yaml:"partitionKey"`
	SortKey      string         `json:"sortKey" yaml:"sortKey"`
	Attributes   map[string]any `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

func (i Item) MarshalZerologObject(e *zerolog.Event) {
	e.Str("pk", i.PartitionKey).Str("sk", i.SortKey)
}

type row struct {
	partitionKey string
	sortKey      string
	attributes   map[string]any
}

func (r *row) Item() Item {
	return Item{
		PartitionKey: r.partitionKey,
		SortKey:      r.sortKey,
		Attributes:   maps.Clone(r.attributes),
	}
}

func (r *row) key() map[string]any {
	return map[string]any{
		keyPartition: r.partitionKey,
		keySort:      r.sortKey,
	}
}

var schema = &memdb.DBSchema{
	Tables: map[string]*memdb.TableSchema{
		tableItems: {
			Name: tableItems,
			Indexes: map[string]*memdb.IndexSchema{
				indexID: {
					Name:   indexID,
					Unique: true,
					Indexer: &memdb.CompoundIndex{
						Indexes: []memdb.Indexer{
							&memdb.StringFieldIndex{Field: "partitionKey"},
							&memdb.StringFieldIndex{Field: "sortKey"},
						},
						AllowMissing: true,
					},
				},
				indexPartition: {
					Name:    indexPartition,
					Unique:  false,
					Indexer: &memdb.StringFieldIndex{Field: "partitionKey"},
				},
			},
		},
	},
}
