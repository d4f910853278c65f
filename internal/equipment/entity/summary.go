package entity

// Parameter names a numeric equipment measurement.
type Parameter string

const (
	ParameterFlowrate    Parameter = "flowrate"
	ParameterPressure    Parameter = "pressure"
	ParameterTemperature Parameter = "temperature"
)

// Parameters lists the measurements in report/column order.
func Parameters() []Parameter {
	return []Parameter{ParameterFlowrate, ParameterPressure, ParameterTemperature}
}

// Value returns the measurement of e for p.
func (e Equipment) Value(p Parameter) *float64 {
	switch p {
	case ParameterFlowrate:
		return e.Flowrate
	case ParameterPressure:
		return e.Pressure
	case ParameterTemperature:
		return e.Temperature
	default:
		return nil
	}
}

// Mean is an arithmetic mean together with the number of values behind it.
// A zero Count means there was no data; Value is then 0.
type Mean struct {
	Value float64
	Count int
}

// Valid reports whether at least one value contributed to the mean.
func (m Mean) Valid() bool {
	return m.Count > 0
}

type Summary struct {
	Dataset          Dataset
	Averages         map[Parameter]Mean
	TypeDistribution map[string]int
}
