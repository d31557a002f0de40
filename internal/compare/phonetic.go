package compare

// consonantClasses maps letters to simplified Soundex digit classes.
var consonantClasses = map[byte]byte{
	'B': '1', 'F': '1', 'P': '1', 'V': '1',
	'C': '2', 'G': '2', 'J': '2', 'K': '2', 'Q': '2', 'S': '2', 'X': '2', 'Z': '2',
	'D': '3', 'T': '3',
	'L': '4',
	'M': '5', 'N': '5',
	'R': '6',
}

// phoneticKey produces a 4-symbol phonetic key for an uppercased string:
// first letter kept, subsequent consonant classes encoded as digits with
// adjacent duplicates and vowels dropped, padded with zeros.
func phoneticKey(s string) string {
	if s == "" {
		return ""
	}

	key := []byte{s[0]}
	prev := classOf(s[0])

	for i := 1; i < len(s) && len(key) < 4; i++ {
		code := classOf(s[i])
		if code != '0' && code != prev {
			key = append(key, code)
		}
		prev = code
	}

	for len(key) < 4 {
		key = append(key, '0')
	}
	return string(key)
}

func classOf(c byte) byte {
	if code, ok := consonantClasses[c]; ok {
		return code
	}
	return '0'
}
