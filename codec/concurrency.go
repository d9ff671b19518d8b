package codec

// Concurrency negotiates a (chunk concurrency, codec concurrency) pair
// whose product does not exceed target, given the pipeline's recommended
// concurrency and the number of chunks a multi-chunk operation will visit
// (§4.3, §4.5). The negotiation prefers to saturate chunk concurrency first
// down to chunkConcurrentMinimum, then codec concurrency (bounded by the
// codec's own recommended range), then lets chunk concurrency grow back up
// to use any budget the codec concurrency left unused. The codec's
// recommended minimum is always honoured, so the product exceeds target
// only when that minimum alone does. A target below 1 is treated as 1.
func Concurrency(target int, numChunks int, rc RecommendedConcurrency, chunkConcurrentMinimum int) (chunkConcurrency, codecConcurrency int) {
	if target <= 0 {
		target = 1
	}
	if numChunks <= 0 {
		numChunks = 1
	}
	if chunkConcurrentMinimum <= 0 {
		chunkConcurrentMinimum = 1
	}
	if rc.Min < 1 {
		rc.Min = 1
	}
	if rc.Max < rc.Min {
		rc.Max = rc.Min
	}

	chunkConcurrency = minInt(numChunks, minInt(chunkConcurrentMinimum, target))
	if chunkConcurrency < 1 {
		chunkConcurrency = 1
	}

	remaining := target / chunkConcurrency
	if remaining < 1 {
		remaining = 1
	}
	codecConcurrency = clampInt(remaining, rc.Min, rc.Max)

	maxChunk := target / codecConcurrency
	if maxChunk < 1 {
		maxChunk = 1
	}
	if maxChunk > numChunks {
		maxChunk = numChunks
	}
	chunkConcurrency = maxChunk
	return chunkConcurrency, codecConcurrency
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
