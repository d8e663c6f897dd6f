package analysis

import (
	"fmt"
	"math"
)

// ReflectanceEpsilon replaces a zero reference radiance before dividing. It is the float64 machine epsilon,
// which keeps target/reference finite for any finite target.
const ReflectanceEpsilon = 2.220446049250313e-16

// RadianceTarget converts irradiance measured at distance into radiance.
// A zero distance gives a zero vector.
func RadianceTarget(irradiance []float64, distance float64) []float64 {
	out := make([]float64, len(irradiance))
	if distance == 0 {
		return out
	}
	// evaluated as irradiance*d² / (2π(d/2)²); the distance terms cancel but the rounding is kept
	squared := distance * distance
	half := distance / 2
	area := 2 * math.Pi * (half * half)
	for i, v := range irradiance {
		out[i] = (v * squared) / area
	}
	return out
}

// RadianceReference converts the reference (calibration) irradiance into radiance. When second is non-nil
// the two readings are averaged element-wise first.
func RadianceReference(first []float64, distance float64, second []float64) ([]float64, error) {
	avg := first
	if second != nil {
		if len(second) != len(first) {
			return nil, fmt.Errorf("reference vectors differ in length: %d vs %d", len(first), len(second))
		}
		avg = make([]float64, len(first))
		for i := range first {
			avg[i] = (first[i] + second[i]) / 2
		}
	}
	return RadianceTarget(avg, distance), nil
}

// Reflectance divides target by reference radiance element-wise. Zero reference elements are replaced by
// ReflectanceEpsilon; guarded reports how many were replaced.
func Reflectance(target, reference []float64) (reflectance []float64, guarded int, err error) {
	if len(target) != len(reference) {
		return nil, 0, fmt.Errorf("radiance vectors differ in length: %d vs %d", len(target), len(reference))
	}
	reflectance = make([]float64, len(target))
	for i := range target {
		ref := reference[i]
		if ref == 0 {
			ref = ReflectanceEpsilon
			guarded++
		}
		reflectance[i] = target[i] / ref
	}
	return reflectance, guarded, nil
}
