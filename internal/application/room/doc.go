// Package room runs OmokPang games.
//
// The manager owns every live room and routes player commands to them.
// Each room is a small state machine:
//   - card select: players reroll their two cards and mark themselves ready
//   - playing: seats take turns placing stones and using cards
//   - finished: results are broadcast, published and the room is dropped
//
// A room serializes commands and timer callbacks behind one mutex. Timers
// carry a generation number so callbacks that lost a race are ignored.
package room
