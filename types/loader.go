package types

import "context"

// Loader is the contract between background refresh and whatever owns the data for a key.
type Loader interface {

	/*
		Reload fetches the value for key from its source of truth and writes it back
		into the cache.

		1. Refresh hook decides a key is worth refreshing
		2. Hook calls Reload(key)
		3. Loader fetches from the remote source
		4. Loader writes the fresh value into the cache

		Reload does not return the value. Callers read it through the cache afterwards.
	*/
	Reload(ctx context.Context, key string) error
}
