package rules

// piece is one stone in a stack: its owner and its shape. Only the top
// piece of a stack can be a Standing or Capstone shape; every piece
// beneath is necessarily Flat (flattened on burial, as in real Tak).
type piece struct {
	owner   Player
	variant Variant
}

// board is a square grid of stacks, bottom-of-stack first.
type board struct {
	size  int
	cells [][]piece // cells[y*size+x]
}

func newBoard(size int) *board {
	return &board{size: size, cells: make([][]piece, size*size)}
}

func (b *board) idx(p Pos) int { return p.Y*b.size + p.X }

func (b *board) stackAt(p Pos) []piece { return b.cells[b.idx(p)] }

func (b *board) isEmpty(p Pos) bool { return len(b.stackAt(p)) == 0 }

func (b *board) topOf(p Pos) (piece, bool) {
	s := b.stackAt(p)
	if len(s) == 0 {
		return piece{}, false
	}
	return s[len(s)-1], true
}

func (b *board) place(p Pos, pc piece) {
	i := b.idx(p)
	b.cells[i] = append(b.cells[i], pc)
}

// isFull reports whether every square carries at least one piece.
func (b *board) isFull() bool {
	for _, s := range b.cells {
		if len(s) == 0 {
			return false
		}
	}
	return true
}

// countFlats returns the number of top-of-stack flats owned by each side.
func (b *board) countFlats() (white, black int) {
	for _, s := range b.cells {
		if len(s) == 0 {
			continue
		}
		top := s[len(s)-1]
		if top.variant != Flat {
			continue
		}
		if top.owner == White {
			white++
		} else {
			black++
		}
	}
	return
}

// hasRoad reports whether player connects two opposite edges of the
// board through a chain of Flat/Capstone tops they own (Standing stones
// do not carry a road).
func (b *board) hasRoad(player Player) bool {
	n := b.size
	visited := make([]bool, n*n)

	ownsRoadPiece := func(p Pos) bool {
		top, ok := b.topOf(p)
		return ok && top.owner == player && top.variant != Standing
	}

	// For each unvisited road cell, flood-fill its connected component and
	// test whether it spans the board on either axis.
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			p := Pos{x, y}
			if visited[b.idx(p)] || !ownsRoadPiece(p) {
				continue
			}
			comp := components(b, p, player, visited)
			minX, maxX, minY, maxY := n, -1, n, -1
			for _, c := range comp {
				if c.X < minX {
					minX = c.X
				}
				if c.X > maxX {
					maxX = c.X
				}
				if c.Y < minY {
					minY = c.Y
				}
				if c.Y > maxY {
					maxY = c.Y
				}
			}
			if (minX == 0 && maxX == n-1) || (minY == 0 && maxY == n-1) {
				return true
			}
		}
	}
	return false
}

// components returns every square reachable from start via orthogonal
// adjacency through road-carrying pieces owned by player, marking each
// visited.
func components(b *board, start Pos, player Player, visited []bool) []Pos {
	n := b.size
	var out []Pos
	queue := []Pos{start}
	visited[b.idx(start)] = true
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		out = append(out, p)
		for _, d := range []Dir{Up, Down, Left, Right} {
			np := p.Offset(d, 1)
			if !np.InBounds(n) || visited[b.idx(np)] {
				continue
			}
			top, ok := b.topOf(np)
			if !ok || top.owner != player || top.variant == Standing {
				continue
			}
			visited[b.idx(np)] = true
			queue = append(queue, np)
		}
	}
	return out
}
