// Package domain defines the core persistence models for the application.
// This file implements StringList, a []string column type stored as JSON so
// ordered requirement lists survive round-trips through SQLite text columns.
package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// StringList is an ordered list of strings persisted as a JSON array.
type StringList []string

// Value implements driver.Valuer. A nil list is stored as an empty JSON array
// so scans never produce nil slices for existing rows.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner. It accepts TEXT or BLOB column values.
func (l *StringList) Scan(src any) error {
	if src == nil {
		*l = StringList{}
		return nil
	}
	var data []byte
	switch v := src.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return fmt.Errorf("stringlist: unsupported column type %T", src)
	}
	if len(data) == 0 {
		*l = StringList{}
		return nil
	}
	var out []string
	if err := json.Unmarshal(data, &out); err != nil {
		return errors.New("stringlist: malformed JSON array")
	}
	*l = out
	return nil
}
