// Package items provides persistence for vault items.
//
// Content is stored exactly as supplied (nonce||ciphertext); this layer never
// sees plaintext. Live listings are ordered by sort_order with unordered
// items last, then newest first.
package items
