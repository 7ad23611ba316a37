package store

import (
	"errors"
	"testing"
)

func TestMissingTable(t *testing.T) {
	if MissingTable(nil) {
		t.Fatal("nil error is not a missing table")
	}
	if !MissingTable(errors.New(`ERROR: relation "profiles" does not exist (SQLSTATE 42P01)`)) {
		t.Fatal("expected undefined_table error to match")
	}
	if MissingTable(errors.New("connection refused")) {
		t.Fatal("unrelated error should not match")
	}
}
