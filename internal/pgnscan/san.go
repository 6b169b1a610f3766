package pgnscan

// cleanSAN strips a move number prefix and trailing annotation glyphs from
// a movetext token and returns the SAN part, or nil if the token is not a
// move. Castling written with zeros is rewritten to letter O in place.
func cleanSAN(tok []byte) []byte {
	// "12." "12..." "1.e4"
	i := 0
	for i < len(tok) && tok[i] >= '0' && tok[i] <= '9' {
		i++
	}
	if i > 0 && i < len(tok) && tok[i] == '.' {
		for i < len(tok) && tok[i] == '.' {
			i++
		}
		tok = tok[i:]
	}

	for len(tok) > 0 && (tok[len(tok)-1] == '!' || tok[len(tok)-1] == '?') {
		tok = tok[:len(tok)-1]
	}
	if len(tok) == 0 || len(tok) > maxSANLen {
		return nil
	}

	if tok[0] == '0' {
		if !isZeroCastle(tok) {
			return nil
		}
		for j := range tok {
			if tok[j] == '0' {
				tok[j] = 'O'
			}
		}
		return tok
	}

	switch tok[0] {
	case 'K', 'Q', 'R', 'B', 'N', 'P', 'O',
		'a', 'b', 'c', 'd', 'e', 'f', 'g', 'h':
		return tok
	case '-':
		// null move
		if len(tok) == 2 && tok[1] == '-' {
			return tok
		}
	}
	return nil
}

func isZeroCastle(tok []byte) bool {
	body := tok
	if n := len(body); n > 0 && (body[n-1] == '+' || body[n-1] == '#') {
		body = body[:n-1]
	}
	s := string(body)
	return s == "0-0" || s == "0-0-0"
}
