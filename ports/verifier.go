package ports

// SignatureVerifier checks that a message was signed by the key behind an address
type SignatureVerifier interface {
	// Verify never panics; malformed input yields false
	Verify(message, signature, address string) bool

	ValidAddress(address string) bool
}
