package hscrypto

import "errors"

// ErrUnknownKey is returned when a signature is attributed to a public key
// outside the proof's candidate set.
var ErrUnknownKey = errors.New("hscrypto: public key not in candidate set")

// ErrInvalidSignature is returned when a signature fails verification
// against the message and claimed public key.
var ErrInvalidSignature = errors.New("hscrypto: signature verification failed")
