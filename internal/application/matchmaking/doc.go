// Package matchmaking pairs waiting players into rooms.
//
// Each game mode has its own first-in first-out queue. Once a queue holds
// as many players as the mode seats, they are handed to the match callback
// in queue order, which becomes their seat order.
package matchmaking
