package profile

// Summary is the short display form of a settings mapping. Fields are empty
// when the corresponding setting is absent.
type Summary struct {
	LayerHeight string `json:"layer_height,omitempty"`
	Infill      string `json:"infill,omitempty"`
	Supports    string `json:"supports,omitempty"`
	NozzleTemp  string `json:"nozzle_temp,omitempty"`
	BedTemp     string `json:"bed_temp,omitempty"`
	Speed       string `json:"speed,omitempty"`
}

// Summarize builds the display view from canonical keys.
func Summarize(s Settings) Summary {
	var sum Summary
	if v, ok := s[KeyLayerHeight]; ok {
		sum.LayerHeight = v.String()
	}
	if v, ok := s[KeyInfillPercentage]; ok {
		sum.Infill = v.String() + "%"
	}
	if v, ok := s[KeySupportsRequired]; ok {
		sum.Supports = "No"
		if truthy(v) {
			sum.Supports = "Yes"
		}
	}
	if v, ok := s[KeyNozzleTemp]; ok {
		sum.NozzleTemp = v.String() + "°C"
	}
	if v, ok := s[KeyBedTemp]; ok {
		sum.BedTemp = v.String() + "°C"
	}
	if v, ok := s[KeyPrintSpeed]; ok {
		sum.Speed = v.String() + " mm/s"
	}
	return sum
}

// IsEmpty reports whether no summary field is set.
func (s Summary) IsEmpty() bool {
	return s == Summary{}
}

// truthy mirrors loose truthiness: false, zero and "" are false.
func truthy(v Value) bool {
	switch v.Kind() {
	case KindBool:
		b, _ := v.Bool()
		return b
	case KindInt, KindFloat:
		f, _ := v.Float()
		return f != 0
	default:
		s, _ := v.Str()
		return s != "" && s != "0"
	}
}
