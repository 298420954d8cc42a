package storage

import "errors"

var errNotInitialized = errors.New("store is not initialized")
