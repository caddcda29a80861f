package classifier

// resampleLinear converts samples between rates with linear interpolation.
// Quality is sufficient for classification input; the windows are hundreds of
// milliseconds and the classifier is robust to mild interpolation artifacts.
func resampleLinear(in []float32, fromRate, toRate int) []float32 {
	if fromRate == toRate || len(in) == 0 {
		return in
	}
	outLen := len(in) * toRate / fromRate
	if outLen == 0 {
		return nil
	}
	out := make([]float32, outLen)
	ratio := float64(fromRate) / float64(toRate)
	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= len(in)-1 {
			out[i] = in[len(in)-1]
			continue
		}
		frac := float32(pos - float64(idx))
		out[i] = in[idx]*(1-frac) + in[idx+1]*frac
	}
	return out
}
