package pgnscan

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

// ErrSyntax is returned when the input ends inside a header tag.
var ErrSyntax = errors.New("pgn syntax error")

const (
	readBufferSize = 256 * 1024
	maxSANLen      = 16
)

// Reader reads games from a PGN stream.
type Reader struct {
	r       *bufio.Reader
	started bool
	key     []byte
	val     []byte
	tok     []byte
	games   int64
}

// NewReader wraps r. The caller owns r and closes it.
func NewReader(r io.Reader) *Reader {
	return &Reader{
		r:   bufio.NewReaderSize(r, readBufferSize),
		key: make([]byte, 0, 32),
		val: make([]byte, 0, 128),
		tok: make([]byte, 0, 32),
	}
}

// Games returns the number of games read so far.
func (r *Reader) Games() int64 {
	return r.games
}

// ReadAll reads every remaining game into v.
func (r *Reader) ReadAll(v Visitor) error {
	for {
		ok, err := r.ReadGame(v)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}
}

// ReadGame reads the next game into v. It returns false once the input is
// exhausted without starting another game.
func (r *Reader) ReadGame(v Visitor) (bool, error) {
	if !r.started {
		r.started = true
		if err := r.skipBOM(); err != nil {
			return false, err
		}
	}

	if _, err := r.skipFiller(); err == io.EOF {
		return false, nil
	} else if err != nil {
		return false, err
	}
	if err := r.r.UnreadByte(); err != nil {
		return false, err
	}

	r.games++
	v.BeginGame()

	if err := r.readHeaders(v); err != nil {
		return true, err
	}

	skip := v.EndHeaders()
	if err := r.readMovetext(v, bool(skip)); err != nil {
		return true, err
	}

	return true, v.EndGame()
}

func (r *Reader) skipBOM() error {
	b, err := r.r.Peek(3)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return err
	}
	if len(b) == 3 && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		_, err = r.r.Discard(3)
	}
	if err == io.EOF {
		return nil
	}
	return err
}

// skipFiller consumes whitespace, comments and escape lines and returns the
// first significant byte.
func (r *Reader) skipFiller() (byte, error) {
	for {
		c, err := r.r.ReadByte()
		if err != nil {
			return 0, err
		}
		switch {
		case isSpace(c):
		case c == '%' || c == ';':
			if err := r.skipLine(); err != nil {
				return 0, err
			}
		case c == '{':
			if err := r.skipComment(); err != nil {
				return 0, err
			}
		default:
			return c, nil
		}
	}
}

func (r *Reader) readHeaders(v Visitor) error {
	for {
		c, err := r.skipFiller()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if c != '[' {
			return r.r.UnreadByte()
		}
		if err := r.readHeader(); err != nil {
			return err
		}
		if err := v.Header(r.key, r.val); err != nil {
			return err
		}
	}
}

// readHeader parses the remainder of a tag after '[' into r.key and r.val.
func (r *Reader) readHeader() error {
	r.key = r.key[:0]
	r.val = r.val[:0]

	c, err := r.skipSpace()
	if err != nil {
		return r.headerErr(err)
	}
	for !isSpace(c) && c != '"' && c != ']' {
		r.key = append(r.key, c)
		if c, err = r.r.ReadByte(); err != nil {
			return r.headerErr(err)
		}
	}
	if isSpace(c) {
		if c, err = r.skipSpace(); err != nil {
			return r.headerErr(err)
		}
	}
	if c == ']' {
		return nil
	}
	if c == '"' {
		for {
			if c, err = r.r.ReadByte(); err != nil {
				return r.headerErr(err)
			}
			if c == '"' {
				break
			}
			if c == '\\' {
				if c, err = r.r.ReadByte(); err != nil {
					return r.headerErr(err)
				}
			}
			r.val = append(r.val, c)
		}
	}
	// Tolerate junk up to the closing bracket or end of line.
	for {
		if c, err = r.r.ReadByte(); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		if c == ']' || c == '\n' {
			return nil
		}
	}
}

func (r *Reader) headerErr(err error) error {
	if err == io.EOF {
		return fmt.Errorf("%w: unterminated header %q in game %d", ErrSyntax, r.key, r.games)
	}
	return err
}

func (r *Reader) readMovetext(v Visitor, skipGame bool) error {
	depth := 0
	skipFrom := 0 // variation depth being skipped, 0 when none
	for {
		c, err := r.r.ReadByte()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		switch {
		case isSpace(c):
		case c == '{':
			if err := r.skipComment(); err != nil {
				return eofOK(err)
			}
		case c == ';' || c == '%':
			if err := r.skipLine(); err != nil {
				return eofOK(err)
			}
		case c == '[':
			// Next game's headers without a termination marker.
			return r.r.UnreadByte()
		case c == '(':
			depth++
			if !skipGame && skipFrom == 0 && bool(v.BeginVariation()) {
				skipFrom = depth
			}
		case c == ')':
			if depth == 0 {
				continue
			}
			if skipFrom == depth {
				skipFrom = 0
			} else if !skipGame && skipFrom == 0 {
				v.EndVariation()
			}
			depth--
		case c == '*':
			if depth == 0 {
				return nil
			}
		case c == '$':
			if err := r.skipDigits(); err != nil {
				return eofOK(err)
			}
		default:
			if err := r.readToken(c); err != nil && err != io.EOF {
				return err
			}
			tok := r.tok
			if depth == 0 && isResult(tok) {
				return nil
			}
			if skipGame || skipFrom != 0 {
				continue
			}
			san := cleanSAN(tok)
			if san == nil {
				continue
			}
			if err := v.SAN(san); err != nil {
				return err
			}
		}
	}
}

// readToken collects a movetext word starting with c into r.tok.
func (r *Reader) readToken(c byte) error {
	r.tok = append(r.tok[:0], c)
	for {
		c, err := r.r.ReadByte()
		if err != nil {
			return err
		}
		if isDelimiter(c) {
			return r.r.UnreadByte()
		}
		r.tok = append(r.tok, c)
	}
}

func (r *Reader) skipSpace() (byte, error) {
	for {
		c, err := r.r.ReadByte()
		if err != nil {
			return 0, err
		}
		if !isSpace(c) {
			return c, nil
		}
	}
}

func (r *Reader) skipLine() error {
	for {
		if _, err := r.r.ReadSlice('\n'); err != bufio.ErrBufferFull {
			return err
		}
	}
}

func (r *Reader) skipComment() error {
	for {
		if _, err := r.r.ReadSlice('}'); err != bufio.ErrBufferFull {
			return err
		}
	}
}

func (r *Reader) skipDigits() error {
	for {
		c, err := r.r.ReadByte()
		if err != nil {
			return err
		}
		if c < '0' || c > '9' {
			return r.r.UnreadByte()
		}
	}
}

func eofOK(err error) error {
	if err == io.EOF {
		return nil
	}
	return err
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\r' || c == '\t' || c == '\v' || c == '\f'
}

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '{', '}', ';', '[', ']', '"', '$':
		return true
	}
	return isSpace(c)
}

func isResult(tok []byte) bool {
	switch string(tok) {
	case "1-0", "0-1", "1/2-1/2", "*":
		return true
	}
	return false
}
