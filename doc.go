// Package lrukv provides an in-memory key-value cache server with
// least-recently-used eviction and a byte budget.
//
// A Node owns one cache and one TCP server speaking a memcached-style text
// protocol. Entries are charged len(key)+len(value) bytes; when an insert
// would exceed the capacity the least recently used entries are evicted
// first, and an entry larger than the whole capacity is rejected.
//
// Basic usage:
//
//	node, err := lrukv.New(
//		lrukv.WithPort(11211),
//		lrukv.WithCapacity(64<<20),
//		lrukv.WithMaxConnections(128),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer stop()
//
//	// Start returns once the listener is bound; cancelling ctx stops the node
//	if err := node.Start(ctx); err != nil {
//		log.Fatal(err)
//	}
//	node.Join()
//
// The cache can also be used in-process through Storage without any
// network round trip.
//
// Supported commands: set, add, replace, append, prepend, cas, get, gets,
// delete, stats, version, and the scripting commands eval, evalsha and
// script (load, exists, flush) backed by a sandboxed Lua interpreter.
package lrukv
