package types

import (
	"encoding/json"
	"time"
)

/*
Record is the envelope persisted for every cache key.

The payload is kept as raw JSON so a record can be moved between the hot tier and the
durable backend without knowing the payload type. A record is always replaced as a whole,
it is never patched in place.
*/
type Record struct {
	Key       string          `json:"key"`
	Payload   json.RawMessage `json:"payload"`
	WrittenAt time.Time       `json:"writtenAt"`
}
