package policy

// EntryCost returns the number of bytes an entry charges against the cache
// budget: the length of its key plus the length of its value.
func EntryCost(key string, value []byte) int64 {
	return int64(len(key) + len(value))
}
