package detect

// alignExact runs the full-matrix boundary search over one window. Rows
// are the reference positions pLo..pHi, columns the reversed view of the
// window. A matched cell scores the node's length, anything else -1, and
// chains restart at zero, so the best chain is the longest consistent
// reversed stretch weighted by bases. Returns false when nothing scored
// above zero.
func alignExact(entries []Entry, pLo, pHi int32, idx *RefIndex) (alignment, bool) {
	qrev := reversedView(entries)
	rows := int(pHi-pLo) + 1
	cols := len(qrev)

	score := make([]int32, rows*cols)
	trace := make([]int8, rows*cols)

	var bestScore int32
	bestI, bestJ := -1, -1

	for i := 0; i < rows; i++ {
		pos := pLo + int32(i)
		nodeLen := idx.lenAt[pos]
		for j := 0; j < cols; j++ {
			var cell int32 = -1
			if matchesAt(qrev[j], pos) {
				cell = nodeLen
			}

			// Ties go to continuation, so a gap entry whose penalty
			// exactly cancels the surrounding matches still leaves the
			// chain bridged instead of splitting the run.
			base, move := int32(0), moveStop
			if i > 0 && j > 0 && score[(i-1)*cols+j-1] >= base {
				base, move = score[(i-1)*cols+j-1], moveDiag
			}
			if i > 0 && score[(i-1)*cols+j] >= base {
				base, move = score[(i-1)*cols+j], moveUp
			}
			if j > 0 && score[i*cols+j-1] >= base {
				base, move = score[i*cols+j-1], moveLeft
			}

			s := base + cell
			score[i*cols+j] = s
			trace[i*cols+j] = move
			if s > bestScore {
				bestScore = s
				bestI, bestJ = i, j
			}
		}
	}
	if bestI < 0 {
		return alignment{}, false
	}
	return walkExact(trace, qrev, pLo, cols, bestI, bestJ, idx), true
}

// walkExact follows the traceback from the best cell to its chain start
// and tallies the matched evidence along the way.
func walkExact(trace []int8, qrev []Entry, pLo int32, cols, bestI, bestJ int, idx *RefIndex) alignment {
	var aln alignment
	i, j := bestI, bestJ
	lastCounted := -1
	for {
		pos := pLo + int32(i)
		if matchesAt(qrev[j], pos) && i != lastCounted {
			aln.entries++
			aln.bases += int64(idx.lenAt[pos])
			lastCounted = i
		}
		move := trace[i*cols+j]
		if move == moveStop {
			break
		}
		switch move {
		case moveDiag:
			i--
			j--
		case moveUp:
			i--
		case moveLeft:
			j--
		}
	}
	aln.pLo = pLo + int32(i)
	aln.pHi = pLo + int32(bestI)
	aln.qLo = cols - 1 - bestJ
	aln.qHi = cols - 1 - j
	return aln
}
