// Package server serves a storage.Storage over TCP using the text protocol
// from the protocol package.
//
// One goroutine accepts connections and admits at most a fixed number of
// them; every admitted connection gets its own worker goroutine that reads
// a header, reads the declared body, executes the command and writes the
// response, in a loop. Connections over the limit are closed immediately.
//
// Stop is cooperative: a request that is already executing still gets its
// response, idle connections are woken and closed, and Join returns only
// after every worker has exited.
package server
