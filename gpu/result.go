package gpu

// Result is a qualifying (index, nonce) pair found by a context.
type Result struct {
	Index uint64
	Nonce uint32
}
