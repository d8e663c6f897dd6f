package analysis

// calculateMean averages data; an empty slice averages to 0.
func calculateMean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range data {
		sum += v
	}
	return sum / float64(len(data))
}

// meanVectors is the element-wise mean of equally long vectors.
func meanVectors(vectors ...[]float64) []float64 {
	if len(vectors) == 0 {
		return nil
	}
	out := make([]float64, len(vectors[0]))
	column := make([]float64, len(vectors))
	for i := range out {
		for j, v := range vectors {
			column[j] = v[i]
		}
		out[i] = calculateMean(column)
	}
	return out
}
