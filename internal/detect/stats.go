package detect

import "math"

// shannonEntropy returns the byte-level entropy of b in bits, 0..8.
func shannonEntropy(b []byte) float64 {
	if len(b) == 0 {
		return 0
	}
	var counts [256]int
	for _, c := range b {
		counts[c]++
	}
	total := float64(len(b))
	var h float64
	for _, n := range counts {
		if n == 0 {
			continue
		}
		p := float64(n) / total
		h -= p * math.Log2(p)
	}
	return h
}

// chunkEntropies splits b into n equal chunks and returns per-chunk
// entropies. Trailing remainder bytes fold into the last chunk.
func chunkEntropies(b []byte, n int) []float64 {
	if n <= 0 || len(b) == 0 {
		return nil
	}
	if n > len(b) {
		n = len(b)
	}
	size := len(b) / n
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		start := i * size
		end := start + size
		if i == n-1 {
			end = len(b)
		}
		out[i] = shannonEntropy(b[start:end])
	}
	return out
}

func mean(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}

func stddev(vs []float64) float64 {
	if len(vs) < 2 {
		return 0
	}
	m := mean(vs)
	var sum float64
	for _, v := range vs {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(vs)))
}

func maxOf(vs []float64) float64 {
	var m float64
	for _, v := range vs {
		if v > m {
			m = v
		}
	}
	return m
}
