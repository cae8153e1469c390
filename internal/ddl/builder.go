// Package ddl builds the DuckDB DDL statements used to land intake batches.
package ddl

import (
	"fmt"
	"strings"
)

// ColumnDef describes a column for CREATE TABLE.
type ColumnDef struct {
	Name string
	Type string
}

// allowedTypes are the column types the intake writer produces.
var allowedTypes = map[string]bool{
	"BIGINT":      true,
	"DOUBLE":      true,
	"VARCHAR":     true,
	"TIMESTAMPTZ": true,
}

func validateColumn(c ColumnDef) error {
	if err := ValidateColumnName(c.Name); err != nil {
		return err
	}
	if !allowedTypes[c.Type] {
		return fmt.Errorf("column type %q is not allowed for %q", c.Type, c.Name)
	}
	return nil
}

// CreateTableIfNotExists returns:
// CREATE TABLE IF NOT EXISTS "<table>" ("<col1>" TYPE1, ...).
func CreateTableIfNotExists(table string, columns []ColumnDef) (string, error) {
	if err := ValidateIdentifier(table); err != nil {
		return "", fmt.Errorf("invalid table name: %w", err)
	}
	if len(columns) == 0 {
		return "", fmt.Errorf("at least one column is required")
	}

	colDefs := make([]string, 0, len(columns))
	for _, c := range columns {
		if err := validateColumn(c); err != nil {
			return "", fmt.Errorf("invalid column: %w", err)
		}
		colDefs = append(colDefs, fmt.Sprintf("%s %s", QuoteIdentifier(c.Name), c.Type))
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)",
		QuoteIdentifier(table), strings.Join(colDefs, ", ")), nil
}

// AddColumnIfNotExists returns:
// ALTER TABLE "<table>" ADD COLUMN IF NOT EXISTS "<col>" TYPE.
func AddColumnIfNotExists(table string, column ColumnDef) (string, error) {
	if err := ValidateIdentifier(table); err != nil {
		return "", fmt.Errorf("invalid table name: %w", err)
	}
	if err := validateColumn(column); err != nil {
		return "", fmt.Errorf("invalid column: %w", err)
	}
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s %s",
		QuoteIdentifier(table), QuoteIdentifier(column.Name), column.Type), nil
}

// TableColumnsSQL returns a query listing the columns of table in ordinal
// order. Its single result column is the column name.
func TableColumnsSQL(table string) (string, error) {
	if err := ValidateIdentifier(table); err != nil {
		return "", fmt.Errorf("invalid table name: %w", err)
	}
	return fmt.Sprintf(
		"SELECT column_name FROM information_schema.columns WHERE table_schema = current_schema() AND table_name = %s ORDER BY ordinal_position",
		QuoteLiteral(table)), nil
}
