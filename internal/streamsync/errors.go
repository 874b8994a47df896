package streamsync

import "errors"

// ErrNoStreamsAvailable is returned by New when not a single configured
// source could be opened, or when every source was retired before the
// startup offset check could read a timestamp from it.
var ErrNoStreamsAvailable = errors.New("streamsync: no streams available")

// ErrStreamOffsetTooLarge is returned by New when the spread between the
// valid sources' oldest observed timestamps exceeds Config.MaxInitialStreamOffset.
var ErrStreamOffsetTooLarge = errors.New("streamsync: initial stream offset too large")
