// Package lua provides server-side Lua scripting over the cache.
//
// Scripts run against a storage.Storage and reach it through the global
// cache table:
//   - cache.call(cmd, ...) and cache.pcall(cmd, ...) run one storage
//     operation; cmd is one of GET, PUT, ADD, SET, DELETE
//   - KEYS and ARGV hold the keys and arguments passed by the client
//
// Each script runs in a fresh interpreter with only the base, table,
// string and math libraries loaded, and file loading removed.
package lua
