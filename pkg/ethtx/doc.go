// Package ethtx signs legacy Ethereum transactions with EIP-155 replay protection.
//
// Signing is deterministic: the same descriptor, key and chain id always produce
// the same bytes.
package ethtx
