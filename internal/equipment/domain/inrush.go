package equipment

import "math"

// Inrush multipliers per equipment type.
const (
	inrushFactorMotor       = 7.0
	inrushFactorTransformer = 8.0
	inrushFactorCapacitor   = 4.8
	inrushFactorDefault     = 6.0

	gridFrequencyHz = 60.0
)

// InrushCurrent computes the transient current drawn at start, in amperes.
// Pure function of the nameplate values; returns 0 when nominal current is
// unset or zero.
func (e *Equipment) InrushCurrent() float64 {
	if e == nil || e.NominalCurrent == 0 {
		return 0
	}
	switch e.Type {
	case TypeMotor:
		return e.NominalCurrent * inrushFactorMotor
	case TypeTransformer:
		return e.NominalCurrent * inrushFactorTransformer
	case TypeCapacitor:
		// Iinrush = Vrms · ω · C, capacitance given in µF.
		if e.Voltage > 0 && e.CapacitanceUF > 0 {
			omega := 2 * math.Pi * gridFrequencyHz
			return e.Voltage * omega * e.CapacitanceUF / 1e6
		}
		return e.NominalCurrent * inrushFactorCapacitor
	default:
		return e.NominalCurrent * inrushFactorDefault
	}
}
