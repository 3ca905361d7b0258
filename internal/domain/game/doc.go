// Package game holds the OmokPang rules that do not depend on networking:
// the 15x15 board with five-in-a-row detection, the weighted card deck and
// the matchmaking modes.
package game
