package capturedb

import "time"

// The composite types used for messages to the ClickHouse database.
// Capture records themselves are defined by the driver package.

// ActivityMessage is the information for the sigmadaqactivity table: one
// row per run of the daemon.
type ActivityMessage struct {
	ID        string
	Hostname  string
	Version   string
	GoVersion string
	CPUs      int
	Start     time.Time
	End       time.Time
}
