package store

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/FreePeak/data-query-server/internal/domain"
)

// StaticMetadata is an immutable domain.MetadataProvider.
type StaticMetadata struct {
	items  []domain.DatasetMetadata
	byName map[string]domain.DatasetMetadata
}

// NewStaticMetadata captures items in the given order. Later entries with
// a duplicate name are ignored.
func NewStaticMetadata(items []domain.DatasetMetadata) *StaticMetadata {
	m := &StaticMetadata{
		items:  make([]domain.DatasetMetadata, 0, len(items)),
		byName: make(map[string]domain.DatasetMetadata, len(items)),
	}
	for _, item := range items {
		if _, dup := m.byName[item.Name]; dup {
			continue
		}
		item.Columns = append([]string(nil), item.Columns...)
		m.items = append(m.items, item)
		m.byName[item.Name] = item
	}
	return m
}

// Datasets returns a copy of the metadata in load order.
func (m *StaticMetadata) Datasets() []domain.DatasetMetadata {
	out := make([]domain.DatasetMetadata, len(m.items))
	copy(out, m.items)
	return out
}

// Dataset looks up metadata by table name.
func (m *StaticMetadata) Dataset(name string) (domain.DatasetMetadata, bool) {
	item, ok := m.byName[name]
	return item, ok
}

// InspectDatasets builds metadata for the tables already present in s.
// Descriptions are left empty.
func InspectDatasets(ctx context.Context, s domain.DatasetStore) ([]domain.DatasetMetadata, error) {
	tables, err := s.ListTables(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list tables")
	}

	meta := make([]domain.DatasetMetadata, 0, len(tables))
	for _, table := range tables {
		cols, err := s.DescribeTable(ctx, table)
		if err != nil {
			return nil, errors.Wrapf(err, "describe table %s", table)
		}
		rows, err := s.RunQuery(ctx, "SELECT COUNT(*) AS n FROM "+quoteIdent(table))
		if err != nil {
			return nil, errors.Wrapf(err, "count rows of %s", table)
		}

		item := domain.DatasetMetadata{Name: table, Columns: make([]string, len(cols))}
		for i, c := range cols {
			item.Columns[i] = c.Column
		}
		if len(rows.Data) == 1 {
			if n, ok := rows.Data[0]["n"].(int64); ok {
				item.RowCount = int(n)
			}
		}
		meta = append(meta, item)
	}
	return meta, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
