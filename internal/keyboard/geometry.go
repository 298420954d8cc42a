package keyboard

// Position identifies one of the physical key slots.
type Position uint8

// Finger identifies one of the modelled fingers. Fingers 0-3 belong to the
// left hand (pinky to index), 4-7 to the right hand (index to pinky).
type Finger uint8

const (
	NumKeys    = 26
	NumFingers = 8
)

// Row widths of the reference geometry: top, home, bottom.
var RowWidths = [3]int{8, 10, 8}

// FingerOf is the static finger assignment for every position.
var FingerOf = [NumKeys]Finger{
	1, 2, 3, 3, 4, 4, 5, 6,
	0, 1, 2, 3, 3, 4, 4, 5, 6, 7,
	0, 1, 2, 3, 4, 5, 6, 7,
}

// HomePositions is the resting position of every finger.
var HomePositions = [NumFingers]Position{8, 9, 10, 11, 14, 15, 16, 17}

// keyCoords places every position on a column/row grid. The top row is
// inset by one column and the bottom row has a gap in columns 4-5.
var keyCoords = [NumKeys][2]int{
	{1, 0}, {2, 0}, {3, 0}, {4, 0}, {5, 0}, {6, 0}, {7, 0}, {8, 0},
	{0, 1}, {1, 1}, {2, 1}, {3, 1}, {4, 1}, {5, 1}, {6, 1}, {7, 1}, {8, 1}, {9, 1},
	{0, 2}, {1, 2}, {2, 2}, {3, 2}, {6, 2}, {7, 2}, {8, 2}, {9, 2},
}

// Hand returns 0 for the left hand and 1 for the right hand.
func (f Finger) Hand() int {
	return int(f) / (NumFingers / 2)
}

// Coord returns the grid column and row of a position.
func (p Position) Coord() (col, row int) {
	c := keyCoords[p]
	return c[0], c[1]
}

// Row returns the row index of a position.
func (p Position) Row() int {
	return keyCoords[p][1]
}
