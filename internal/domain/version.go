package domain

import "time"

// VersionLayout formats version_timestamp values: YYYYMMDDHHmm.
const VersionLayout = "200601021504"

// VersionTimestamp formats t in UTC as a dataset version.
func VersionTimestamp(t time.Time) string {
	return t.UTC().Format(VersionLayout)
}

// NewVersion stamps the current time. Call it once per run and pass the result
// down; every table of the run must carry the same value.
func NewVersion() string {
	return VersionTimestamp(clock.Now())
}
