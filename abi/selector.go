package abi

import "sync"

// selectorCache memoizes FunctionSelector results across every caller in
// the process, since the same handful of ERC-20/EIP-2612/EIP-3009
// signatures get hashed repeatedly by every client instance.
var selectorCache sync.Map // string -> [4]byte

// CachedFunctionSelector is FunctionSelector with a process-wide memo, used
// by the ERC-20 and USDC clients so repeated calldata construction for the
// same method signature never re-hashes it.
func CachedFunctionSelector(signature string) [4]byte {
	if v, ok := selectorCache.Load(signature); ok {
		return v.([4]byte)
	}
	sel := FunctionSelector(signature)
	selectorCache.Store(signature, sel)
	return sel
}
