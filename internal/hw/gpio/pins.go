package gpio

import "fmt"

// boardToBCM maps physical 40-pin header positions to BCM channels.
// Power and ground positions are absent.
var boardToBCM = map[int]int{
	3: 2, 5: 3, 7: 4, 8: 14, 10: 15, 11: 17, 12: 18, 13: 27,
	15: 22, 16: 23, 18: 24, 19: 10, 21: 9, 22: 25, 23: 11, 24: 8,
	26: 7, 27: 0, 28: 1, 29: 5, 31: 6, 32: 12, 33: 13, 35: 19,
	36: 16, 37: 26, 38: 20, 40: 21,
}

// BoardToBCM converts a physical header pin to its BCM channel.
func BoardToBCM(pin int) (int, error) {
	bcm, ok := boardToBCM[pin]
	if !ok {
		return 0, fmt.Errorf("board pin %d is not a GPIO (power, ground or out of range)", pin)
	}
	return bcm, nil
}

// ResolvePin returns the BCM channel for pin. When board is true, pin is a
// physical header position; otherwise it is already a BCM channel (0-27).
func ResolvePin(pin int, board bool) (int, error) {
	if board {
		return BoardToBCM(pin)
	}
	if pin < 0 || pin > 27 {
		return 0, fmt.Errorf("bcm pin %d out of range 0-27", pin)
	}
	return pin, nil
}
