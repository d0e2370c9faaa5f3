package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/FreePeak/data-query-server/internal/domain"
)

const timestampLayout = "2006-01-02 15:04:05"

type column struct {
	name     string
	declType string
}

type sampleTable struct {
	name        string
	description string
	columns     []column
	rows        [][]interface{}
}

func (t sampleTable) metadata() domain.DatasetMetadata {
	cols := make([]string, len(t.columns))
	for i, c := range t.columns {
		cols[i] = c.name
	}
	return domain.DatasetMetadata{
		Name:        t.name,
		Description: t.description,
		Columns:     cols,
		RowCount:    len(t.rows),
	}
}

// SeedSampleDatasets replaces the sales and customers tables with
// generated sample data and returns their metadata in load order. A nil
// rng uses a randomly seeded source.
func SeedSampleDatasets(ctx context.Context, s *SQLiteStore, rng *rand.Rand) ([]domain.DatasetMetadata, error) {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	tables := []sampleTable{salesTable(rng), customersTable()}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "begin seed transaction")
	}
	defer func() { _ = tx.Rollback() }()

	meta := make([]domain.DatasetMetadata, 0, len(tables))
	for _, t := range tables {
		if err := loadTable(ctx, tx, t); err != nil {
			return nil, errors.Wrapf(err, "load table %s", t.name)
		}
		meta = append(meta, t.metadata())
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "commit seed transaction")
	}
	return meta, nil
}

func loadTable(ctx context.Context, tx *sql.Tx, t sampleTable) error {
	defs := make([]string, len(t.columns))
	marks := make([]string, len(t.columns))
	for i, c := range t.columns {
		defs[i] = fmt.Sprintf("%s %s", c.name, c.declType)
		marks[i] = "?"
	}

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+t.name); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", t.name, strings.Join(defs, ", "))); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s VALUES (%s)", t.name, strings.Join(marks, ", ")))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, row := range t.rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return err
		}
	}
	return nil
}

func salesTable(rng *rand.Rand) sampleTable {
	products := []string{"Product A", "Product B", "Product C"}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	rows := make([][]interface{}, 0, 100)
	for i := 1; i <= 100; i++ {
		price := math.Round((10+rng.Float64()*90)*100) / 100
		rows = append(rows, []interface{}{
			i,
			fmt.Sprintf("CUST_%03d", i),
			products[(i-1)%len(products)],
			1 + rng.IntN(9),
			price,
			start.AddDate(0, 0, i-1).Format(timestampLayout),
		})
	}

	return sampleTable{
		name:        "sales",
		description: "Sales transaction data with order details",
		columns: []column{
			{"order_id", "BIGINT"},
			{"customer_id", "VARCHAR"},
			{"product", "VARCHAR"},
			{"quantity", "BIGINT"},
			{"price", "DOUBLE"},
			{"order_date", "TIMESTAMP"},
		},
		rows: rows,
	}
}

func customersTable() sampleTable {
	cities := []string{"New York", "Los Angeles", "Chicago", "Houston", "Phoenix"}
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

	rows := make([][]interface{}, 0, 50)
	for i := 1; i <= 50; i++ {
		rows = append(rows, []interface{}{
			fmt.Sprintf("CUST_%03d", i),
			fmt.Sprintf("Customer %d", i),
			fmt.Sprintf("customer%d@example.com", i),
			cities[(i-1)%len(cities)],
			start.AddDate(0, 0, 7*(i-1)).Format(timestampLayout),
		})
	}

	return sampleTable{
		name:        "customers",
		description: "Customer information and registration data",
		columns: []column{
			{"customer_id", "VARCHAR"},
			{"name", "VARCHAR"},
			{"email", "VARCHAR"},
			{"city", "VARCHAR"},
			{"registration_date", "TIMESTAMP"},
		},
		rows: rows,
	}
}
