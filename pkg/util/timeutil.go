package util

import "time"

// BackupStampLayout formats backup snapshot suffixes as YYYYMMDD-HHMMSS.
const BackupStampLayout = "20060102-150405"

// NowUTC exposes time.Now for deterministic testing.
func NowUTC() time.Time {
	return time.Now().UTC()
}

// BackupStamp renders ts using BackupStampLayout.
func BackupStamp(ts time.Time) string {
	return ts.Format(BackupStampLayout)
}
