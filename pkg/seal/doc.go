// Package seal provides authenticated symmetric encryption for identity
// state that leaves the server, such as identity cookies.
//
// Values are sealed with AES-256-GCM. The associated data binds a sealed
// value to where it is used (for example the cookie name), so a value cut
// from one place does not open in another:
//
//	s, err := seal.NewSymmetric(dataKey)
//	sealed, err := s.SealString([]byte("identity"), payload)
//	payload, err = s.OpenString([]byte("identity"), sealed)
//
// Data keys are 32 random bytes, usually kept base64 encoded in the
// IDENTITY_DATA_KEY environment variable (see ParseKey and GenerateKey).
package seal
