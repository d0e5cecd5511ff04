package memdb

import (
	"cmp"
	"context"
	"fmt"

	"github.com/hashicorp/go-memdb"

	log "github.com/authzed/pagestream/internal/logging"
	"github.com/authzed/pagestream/pkg/pagination"
)

// Parameter and continuation token keys.
const (
	keyPartition = "PartitionKey"
	keySort      = "SortKey"
)

var _ pagination.Client[Item] = (*Table)(nil)

// Invoke implements pagination.Client. Query requires a PartitionKey parameter; both
// operations honor Limit as the page size and resume after ExclusiveStartKey.
func (t *Table) Invoke(ctx context.Context, operation string, params pagination.Params) (pagination.Page[Item], error) {
	pageSize := t.opts.defaultPageSize
	if limit, ok := params.Limit(); ok {
		pageSize = limit
	}

	after, err := startKey(params)
	if err != nil {
		return pagination.Page[Item]{}, err
	}

	txn := t.db.Txn(false)
	defer txn.Abort()

	var (
		it        memdb.ResultIterator
		partition string
	)
	switch operation {
	case OperationQuery:
		pk, ok := params[keyPartition].(string)
		if !ok || pk == "" {
			return pagination.Page[Item]{}, fmt.Errorf("query requires a string %s parameter", keyPartition)
		}
		partition = pk
		it, err = txn.LowerBound(tableItems, indexPartition, pk)

	case OperationScan:
		if after != nil {
			it, err = txn.LowerBound(tableItems, indexPartition, after.partitionKey)
		} else {
			it, err = txn.Get(tableItems, indexID)
		}

	default:
		return pagination.Page[Item]{}, fmt.Errorf("unsupported memory operation %q", operation)
	}
	if err != nil {
		return pagination.Page[Item]{}, fmt.Errorf(errUnableToQueryItems, err)
	}

	// One extra row is read to learn whether another page exists.
	rows := make([]*row, 0, min(pageSize+1, 64))
	for obj := it.Next(); obj != nil && len(rows) <= pageSize; obj = it.Next() {
		r := obj.(*row)
		if operation == OperationQuery && r.partitionKey != partition {
			break
		}
		if after != nil && compareKeys(r, after) <= 0 {
			continue
		}
		rows = append(rows, r)
	}

	page := pagination.Page[Item]{Items: make([]Item, 0, min(len(rows), pageSize))}
	for _, r := range rows[:min(len(rows), pageSize)] {
		page.Items = append(page.Items, r.Item())
	}
	if len(rows) > pageSize && pageSize > 0 {
		page.ContinuationToken = rows[pageSize-1].key()
	}

	log.Ctx(ctx).Trace().
		Str("operation", operation).
		Int("pageSize", pageSize).
		Int("items", len(page.Items)).
		Bool("more", page.ContinuationToken != nil).
		Msg("memory page")
	return page, nil
}

func compareKeys(a, b *row) int {
	return cmp.Or(
		cmp.Compare(a.partitionKey, b.partitionKey),
		cmp.Compare(a.sortKey, b.sortKey),
	)
}

// startKey reads the continuation token, which is the key map of the last item returned.
func startKey(params pagination.Params) (*row, error) {
	token, ok := params.ContinuationToken()
	if !ok {
		return nil, nil
	}

	var pk, sk any
	switch key := token.(type) {
	case map[string]any:
		pk, sk = key[keyPartition], key[keySort]
	case map[string]string:
		pk, sk = key[keyPartition], key[keySort]
	default:
		return nil, fmt.Errorf("invalid %s: expected a key map, got %T", pagination.ContinuationKey, token)
	}

	partitionKey, ok := pk.(string)
	if !ok || partitionKey == "" {
		return nil, fmt.Errorf("invalid %s: missing %s", pagination.ContinuationKey, keyPartition)
	}
	sortKey, _ := sk.(string)
	return &row{partitionKey: partitionKey, sortKey: sortKey}, nil
}

// NewQuerySequence creates a sequence over the items of one partition.
func (t *Table) NewQuerySequence(partitionKey string, params pagination.Params, opts ...pagination.SequenceOptionsOption) *pagination.Sequence[Item] {
	params = params.Clone()
	params[keyPartition] = partitionKey
	return pagination.Query[Item](t, params, opts...)
}

// NewScanSequence creates a sequence over every item of the table.
func (t *Table) NewScanSequence(params pagination.Params, opts ...pagination.SequenceOptionsOption) *pagination.Sequence[Item] {
	return pagination.CreateSequenceFor[Item](OperationScan)(t, params, opts...)
}
