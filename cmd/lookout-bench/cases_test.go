package main

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestSplitSQL(t *testing.T) {
	sql := `-- comment
CREATE TABLE IF NOT EXISTS a (id INT);

CREATE TABLE IF NOT EXISTS b (id INT);
`
	got := splitSQL(sql)
	want := []string{"CREATE TABLE IF NOT EXISTS a (id INT)", "CREATE TABLE IF NOT EXISTS b (id INT)"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("splitSQL = %q, want %q", got, want)
	}
}

func TestExtractTables(t *testing.T) {
	tables, err := extractTables(filepath.Join("..", "..", "migrations", "0001_ai_usage.sql"))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(tables, []string{"ai_usage"}) {
		t.Fatalf("unexpected tables %v", tables)
	}

	if _, err := extractTables(filepath.Join(t.TempDir(), "missing.sql")); !os.IsNotExist(err) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}
