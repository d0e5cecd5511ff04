package memdb

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-memdb"
)

const (
	Engine = "memory"

	// OperationQuery reads one partition in sort key order; OperationScan reads the whole
	// table in key order.
	OperationQuery = "query"
	OperationScan  = "scan"

	defaultPageSize = 100
)

const (
	errUnableToInstantiateTable = "unable to instantiate table: %w"
	errUnableToWriteItems       = "unable to write items: %w"
	errUnableToQueryItems       = "unable to query items: %w"
)

// ErrMissingPartitionKey is returned when an item without a partition key is written.
var ErrMissingPartitionKey = errors.New("item has no partition key")

type tableOptions struct {
	defaultPageSize int
}

// Option configures a Table.
type Option func(*tableOptions)

// DefaultPageSize sets the page size used when a request carries no limit.
func DefaultPageSize(size int) Option {
	return func(o *tableOptions) {
		o.defaultPageSize = size
	}
}

// Table is an in-memory table of items that can be read page by page.
type Table struct {
	db   *memdb.MemDB
	opts tableOptions
}

// NewTable creates an empty table.
func NewTable(options ...Option) (*Table, error) {
	db, err := memdb.NewMemDB(schema)
	if err != nil {
		return nil, fmt.Errorf(errUnableToInstantiateTable, err)
	}

	opts := tableOptions{defaultPageSize: defaultPageSize}
	for _, option := range options {
		option(&opts)
	}
	if opts.defaultPageSize < 1 {
		opts.defaultPageSize = defaultPageSize
	}

	return &Table{db: db, opts: opts}, nil
}

// Put inserts or replaces items.
func (t *Table) Put(items ...Item) error {
	txn := t.db.Txn(true)
	defer txn.Abort()

	for _, item := range items {
		if item.PartitionKey == "" {
			return fmt.Errorf(errUnableToWriteItems, ErrMissingPartitionKey)
		}
		r := &row{
			partitionKey: item.PartitionKey,
			sortKey:      item.SortKey,
			attributes:   item.Attributes,
		}
		if err := txn.Insert(tableItems, r); err != nil {
			return fmt.Errorf(errUnableToWriteItems, err)
		}
	}

	txn.Commit()
	return nil
}

// Delete removes the item with the given keys. Deleting a missing item is not an error.
func (t *Table) Delete(partitionKey, sortKey string) error {
	txn := t.db.Txn(true)
	defer txn.Abort()

	it, err := txn.Get(tableItems, indexPartition, partitionKey)
	if err != nil {
		return fmt.Errorf(errUnableToWriteItems, err)
	}

	// Empty sort keys are missing from the compound index, so match on the row instead.
	var existing *row
	for obj := it.Next(); obj != nil; obj = it.Next() {
		if r := obj.(*row); r.sortKey == sortKey {
			existing = r
			break
		}
	}
	if existing == nil {
		return nil
	}
	if err := txn.Delete(tableItems, existing); err != nil {
		return fmt.Errorf(errUnableToWriteItems, err)
	}

	txn.Commit()
	return nil
}

// Len returns the number of items in the table.
func (t *Table) Len() int {
	txn := t.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(tableItems, indexID)
	if err != nil {
		return 0
	}

	count := 0
	for obj := it.Next(); obj != nil; obj = it.Next() {
		count++
	}
	return count
}
