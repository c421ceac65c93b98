package detect

// alignBounded is the memory-bounded variant of the boundary search used
// when a window is too large for full matrices. It keeps only two score
// rows, records traceback moves sparsely, and drops cells whose distance
// from the main diagonal exceeds the drop bound plus the size difference
// of the two sides. Off-band cells restart fresh, so a chain can never
// wander outside the band. Mismatch penalties scale with node lengths to
// keep long spurious detours unprofitable.
func alignBounded(entries []Entry, pLo, pHi int32, idx *RefIndex, drop int) (alignment, bool) {
	qrev := reversedView(entries)
	rows := int(pHi-pLo) + 1
	cols := len(qrev)

	rowDrop, colDrop := drop, drop
	if rows > cols {
		rowDrop += rows - cols
	} else {
		colDrop += cols - rows
	}

	lenJ := make([]int32, cols)
	for j, e := range qrev {
		lenJ[j] = idx.lenAt[e.Pos]
	}

	prev := make([]int32, cols)
	cur := make([]int32, cols)
	trace := make(map[[2]int32]int8, cols)

	var bestScore int32
	bestI, bestJ := -1, -1
	note := func(i, j int, s int32) {
		if s > bestScore {
			bestScore = s
			bestI, bestJ = i, j
		}
	}

	for i := 0; i < rows; i++ {
		pos := pLo + int32(i)
		nodeLen := idx.lenAt[pos]
		for j := 0; j < cols; j++ {
			match := matchesAt(qrev[j], pos)

			var s int32
			move := moveStop
			switch {
			case i == 0 && j == 0:
				if match {
					s = nodeLen
				} else {
					s = -nodeLen - lenJ[j]
				}
			case i == 0:
				// Along the first row only leftward chains exist.
				cell := lenJ[j]
				if !match {
					cell = -cell
				}
				s = cell
				if cur[j-1] >= 0 {
					s += cur[j-1]
					move = moveLeft
				}
			case j == 0:
				cell := nodeLen
				if !match {
					cell = -cell
				}
				s = cell
				if prev[0] >= 0 {
					s += prev[0]
					move = moveUp
				}
			case i-j > rowDrop || j-i > colDrop:
				// Off band: fresh start, no traceback entry.
				if match {
					s = nodeLen
				} else {
					s = -nodeLen - lenJ[j]
				}
			case match:
				// Ties go to continuation, as in the exact search.
				base := int32(0)
				if prev[j-1] >= base {
					base, move = prev[j-1], moveDiag
				}
				if prev[j] >= base {
					base, move = prev[j], moveUp
				}
				if cur[j-1] >= base {
					base, move = cur[j-1], moveLeft
				}
				s = base + nodeLen
			default:
				// A skipped node costs its own length on either side; a
				// substitution costs both.
				s = -nodeLen - lenJ[j]
				if d := prev[j-1] - nodeLen - lenJ[j]; d >= s {
					s, move = d, moveDiag
				}
				if u := prev[j] - nodeLen; u >= s {
					s, move = u, moveUp
				}
				if l := cur[j-1] - lenJ[j]; l >= s {
					s, move = l, moveLeft
				}
			}

			cur[j] = s
			if move != moveStop {
				trace[[2]int32{int32(i), int32(j)}] = move
			}
			note(i, j, s)
		}
		prev, cur = cur, prev
	}
	if bestI < 0 {
		return alignment{}, false
	}
	return walkBounded(trace, qrev, pLo, cols, bestI, bestJ, idx), true
}

// walkBounded follows the sparse traceback from the best cell; a missing
// entry means the chain started there.
func walkBounded(trace map[[2]int32]int8, qrev []Entry, pLo int32, cols, bestI, bestJ int, idx *RefIndex) alignment {
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
		move, ok := trace[[2]int32{int32(i), int32(j)}]
		if !ok || move == moveStop {
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
