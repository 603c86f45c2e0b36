package types

// Detection is one object reported by a detector for a single image.
type Detection struct {
	ClassID    int     `json:"class_id"`   // model class index, -1 when unknown
	Label      string  `json:"class_name"` // model class name
	Confidence float64 `json:"confidence"`
}
