// Package constants defines shared constants for the actiscore pipeline.
package constants

// DefaultEpochSeconds is the epoch length the count-based scorers were validated on.
const DefaultEpochSeconds = 60.0

// GravityTolerance is how far (in g) a resting vector may drift from unit
// magnitude before it is treated as an invalid sensor reading.
const GravityTolerance = 0.005

// MaxMarkerSlots is the number of sleep periods tracked per analysis day:
// one main sleep plus up to three supplementary periods.
const MaxMarkerSlots = 4
