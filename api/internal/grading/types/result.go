package types

import "encoding/json"

// Grade is a discrete quality classification. The zero value means no grade
// could be determined.
type Grade string

// NoGrainsMessage is reported instead of percentages when nothing grain-like
// was detected.
const NoGrainsMessage = "No grains detected"

// Result is the output of a grading engine. Each schema has its own wire
// shape, so results carry their own JSON encoding.
type Result interface {
	json.Marshaler
	// Graded reports the grade, or false when no grains were detected.
	Graded() (Grade, bool)
	// Grains is the percentage denominator: every grain-bearing class,
	// never foreign objects.
	Grains() int
}
