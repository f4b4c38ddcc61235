// Package sign defines the signing interfaces used to authenticate RPC responses.
//
// The signer answers every request with a payload signed by its resident key,
// so clients can check which address produced a signed transaction:
//
//	signer, err := sign.NewEthereumSigner(key)
//	sig, err := signer.Sign(ethcrypto.Keccak256(payloadJSON))
//	addr, err := sign.RecoverAddressFromHash(ethcrypto.Keccak256(payloadJSON), sig)
//
// Private keys never cross these interfaces.
package sign
