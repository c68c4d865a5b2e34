package hashdb

import "errors"

// ErrNotFound is wrapped into the error GetBlockRecord returns when a
// block's HashData references a source id that the SourceId store does
// not have. Plain absence of a record is reported through found-bool /
// empty-string results instead.
var ErrNotFound = errors.New("hashdb: not found")
