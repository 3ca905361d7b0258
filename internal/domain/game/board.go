package game

import (
	"errors"
	"fmt"
	"strings"
)

// Size is the number of rows and columns on an omok board.
const Size = 15

// WinLength is the number of aligned stones that wins a game.
const WinLength = 5

var (
	ErrOutOfBounds  = errors.New("cell out of bounds")
	ErrCellOccupied = errors.New("cell already occupied")
	ErrCellEmpty    = errors.New("cell is empty")
)

// Stone is the content of a board cell. Positive values are seat stones
// (seat+1), zero is an empty cell and Shared counts for every seat.
type Stone int8

const (
	Empty  Stone = 0
	Shared Stone = -1
)

// SeatStone returns the stone placed by the given seat.
func SeatStone(seat int) Stone {
	return Stone(seat + 1)
}

// Seat returns the seat owning the stone, or -1 for empty and shared cells.
func (s Stone) Seat() int {
	if s <= 0 {
		return -1
	}
	return int(s) - 1
}

// Point addresses a board cell.
type Point struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

func (p Point) String() string {
	return fmt.Sprintf("%d %d", p.Row, p.Col)
}

// InBounds reports whether p lies on the board.
func (p Point) InBounds() bool {
	return p.Row >= 0 && p.Row < Size && p.Col >= 0 && p.Col < Size
}

// Matcher decides whether a stone belongs to a line being counted.
type Matcher func(Stone) bool

// Board is a Size x Size omok grid. The zero value is an empty board.
type Board struct {
	cells [Size][Size]Stone
	count int
}

// At returns the stone at p. Out of range points read as Empty.
func (b *Board) At(p Point) Stone {
	if !p.InBounds() {
		return Empty
	}
	return b.cells[p.Row][p.Col]
}

// Place puts a seat stone on an empty cell.
func (b *Board) Place(p Point, seat int) error {
	if !p.InBounds() {
		return ErrOutOfBounds
	}
	if b.cells[p.Row][p.Col] != Empty {
		return ErrCellOccupied
	}
	b.cells[p.Row][p.Col] = SeatStone(seat)
	b.count++
	return nil
}

// Remove clears a stone.
func (b *Board) Remove(p Point) error {
	if !p.InBounds() {
		return ErrOutOfBounds
	}
	if b.cells[p.Row][p.Col] == Empty {
		return ErrCellEmpty
	}
	b.cells[p.Row][p.Col] = Empty
	b.count--
	return nil
}

// Swap exchanges the contents of two cells.
func (b *Board) Swap(a, c Point) error {
	if !a.InBounds() || !c.InBounds() {
		return ErrOutOfBounds
	}
	b.cells[a.Row][a.Col], b.cells[c.Row][c.Col] = b.cells[c.Row][c.Col], b.cells[a.Row][a.Col]
	return nil
}

// Share turns an existing stone into a shared stone.
func (b *Board) Share(p Point) error {
	if !p.InBounds() {
		return ErrOutOfBounds
	}
	if b.cells[p.Row][p.Col] == Empty {
		return ErrCellEmpty
	}
	b.cells[p.Row][p.Col] = Shared
	return nil
}

// Bomb clears every stone in the 3x3 area centred on p and returns the
// cleared cells.
func (b *Board) Bomb(p Point) ([]Point, error) {
	if !p.InBounds() {
		return nil, ErrOutOfBounds
	}
	if b.cells[p.Row][p.Col] == Empty {
		return nil, ErrCellEmpty
	}

	var cleared []Point
	for dr := -1; dr <= 1; dr++ {
		for dc := -1; dc <= 1; dc++ {
			q := Point{Row: p.Row + dr, Col: p.Col + dc}
			if !q.InBounds() || b.cells[q.Row][q.Col] == Empty {
				continue
			}
			b.cells[q.Row][q.Col] = Empty
			b.count--
			cleared = append(cleared, q)
		}
	}
	return cleared, nil
}

// Full reports whether no empty cell is left.
func (b *Board) Full() bool {
	return b.count == Size*Size
}

// Count returns the number of stones on the board.
func (b *Board) Count() int {
	return b.count
}

var directions = [4][2]int{{1, 0}, {0, 1}, {1, 1}, {1, -1}}

// WinsAt reports whether the stone at p is part of a line of WinLength or
// more stones accepted by match. Longer lines also win.
func (b *Board) WinsAt(p Point, match Matcher) bool {
	if !p.InBounds() || !match(b.At(p)) {
		return false
	}

	for _, d := range directions {
		count := 1

		// forward
		r, c := p.Row+d[0], p.Col+d[1]
		for (Point{r, c}).InBounds() && match(b.cells[r][c]) {
			count++
			r += d[0]
			c += d[1]
		}

		// backward
		r, c = p.Row-d[0], p.Col-d[1]
		for (Point{r, c}).InBounds() && match(b.cells[r][c]) {
			count++
			r -= d[0]
			c -= d[1]
		}

		if count >= WinLength {
			return true
		}
	}
	return false
}

// HasFive scans the whole board for a winning line accepted by match.
// Effects such as swaps can complete a line away from the last move.
func (b *Board) HasFive(match Matcher) bool {
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			if b.cells[r][c] == Empty {
				continue
			}
			if b.WinsAt(Point{r, c}, match) {
				return true
			}
		}
	}
	return false
}

// Rows renders the board one string per row: '.' empty, '*' shared and
// '1'..'4' for seat stones.
func (b *Board) Rows() []string {
	rows := make([]string, Size)
	var sb strings.Builder
	for r := 0; r < Size; r++ {
		sb.Reset()
		for c := 0; c < Size; c++ {
			switch s := b.cells[r][c]; {
			case s == Empty:
				sb.WriteByte('.')
			case s == Shared:
				sb.WriteByte('*')
			default:
				sb.WriteByte(byte('0' + s))
			}
		}
		rows[r] = sb.String()
	}
	return rows
}
