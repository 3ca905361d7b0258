// Package protocol implements the OmokPang line protocol.
//
// Every WebSocket text frame carries one line: an upper case command
// followed by space separated arguments. Client commands are validated by
// Parse; server lines are built with the helper constructors so both ends
// agree on the argument layout.
package protocol
