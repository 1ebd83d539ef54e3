package metrics

// Sample is one freshly read value for a row.
type Sample struct {
	// Text is the unit-suffixed string shown next to the bar, e.g. "512/1024MiB".
	Text string
	// Fraction is the unclamped position of the reading within its
	// calibrated range. Nil for plain-value rows.
	Fraction *float64
	// Value is the reading in base units (bytes, watts, celsius, rpm,
	// millivolts, MHz, lanes, percent). Nil when the reading has no number.
	Value *float64
}

// HasBar reports whether the sample carries a fraction.
func (s Sample) HasBar() bool {
	return s.Fraction != nil
}

func float64Ptr(value float64) *float64 {
	v := value
	return &v
}

// Reading pairs a sample with the row it was read for.
type Reading struct {
	Kind   Kind
	Sample Sample
}
