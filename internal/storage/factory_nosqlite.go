//go:build !sqlite

package storage

import "fmt"

const defaultStoreKind = "memory"

func newSQLiteStore(path string) (Store, error) {
	return nil, fmt.Errorf("sqlite store %q unavailable in this build; rebuild with -tags sqlite", path)
}
