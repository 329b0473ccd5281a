// Package execute turns parsed request headers into commands and runs them
// against a storage.Storage.
//
// A Command returns the response text without the final line terminator;
// the connection appends it. A Command that fails returns an error instead
// and leaves the store unchanged.
package execute
