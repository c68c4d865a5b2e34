package hashdb

import "encoding/hex"

// HexToBin decodes an even-length hex string into its binary form.
// An odd-length string or one containing non-hex characters yields an
// empty byte slice rather than an error, matching the lenient behavior
// forensic tooling expects from hand-typed or machine-generated hash
// strings.
func HexToBin(s string) []byte {
	if len(s)%2 != 0 {
		return []byte{}
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return []byte{}
	}
	return b
}

// BinToHex is the inverse of HexToBin, always lowercase.
func BinToHex(b []byte) string {
	return hex.EncodeToString(b)
}
