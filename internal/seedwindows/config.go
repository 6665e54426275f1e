package seedwindows

import "time"

// Config describes one seeding run.
type Config struct {
	UserID string // generated when empty
	Email  string
	// Windows is the number of 5-minute resting windows to write, ending at End.
	Windows int
	// AnomalyWindows injects spikes into that many randomly chosen windows.
	AnomalyWindows int
	End            time.Time
	Seed           int64
}

// Result summarizes what was written.
type Result struct {
	UserID      string
	CreatedUser bool
	Windows     int
	Anomalies   int
	Readings    int
	Duplicates  int
	From        time.Time
	To          time.Time
}
