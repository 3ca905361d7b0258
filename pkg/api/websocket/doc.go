// Package websocket serves the OmokPang game protocol over WebSocket.
//
// Each text frame carries one or more protocol lines. A connection is
// greeted with WELCOME, joins a queue with QUEUE <mode> <nickname> and,
// once matched, sends room commands. Closing the connection leaves the
// queue and the room.
package websocket
