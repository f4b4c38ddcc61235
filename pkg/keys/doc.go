// Package keys holds the signer's private key material and its file formats.
//
// A key document is JSON with a hex private key:
//
//	{"private_key": "0x2a3526dd05ad2ebba87673f711ef8c336115254ef8fcd38c4d8166db9a8120e4"}
//
// Import turns such a document into the portable form, the base64 of the 32
// key bytes, which Load and LoadPortableFromPath read back.
package keys
