package cippath

import (
	"strconv"

	"github.com/tturner/ab-eip-client/internal/plc/status"
)

// EncodedTagName is the result of encoding a CIP symbolic tag name
// (spec.md S4.1): the path segment bytes plus any trailing bit reference
// that is not part of the wire path.
type EncodedTagName struct {
	Path   []byte
	HasBit bool
	Bit    int
}

// EncodeTagName encodes a CIP symbolic tag name per the grammar in
// spec.md S4.1:
//
//	tag      ::= symseg (tagseg)* (bitseg)?
//	tagseg   ::= '.' symseg | '[' numseg (',' numseg){0..2} ']'
//	bitseg   ::= '.' INT
//	symseg   ::= [A-Za-z_:] [A-Za-z0-9_:]*
//	numseg   ::= INT
//
// The encoded name is prefixed with a single byte giving its length in
// 16-bit words (spec.md S8 invariant 7: that byte equals
// (total_length-1)/2).
func EncodeTagName(name string) (EncodedTagName, error) {
	p := &tagParser{s: name}
	var body []byte

	seg, err := p.symseg()
	if err != nil {
		return EncodedTagName{}, err
	}
	body = append(body, encodeSymSeg(seg)...)

	var result EncodedTagName
	for !p.done() {
		switch p.peek() {
		case '.':
			p.advance()
			if p.allDigits() {
				n, err := p.intLiteral()
				if err != nil {
					return EncodedTagName{}, err
				}
				if !p.done() {
					return EncodedTagName{}, status.New(status.BadParam, "bit segment must be the final segment in tag name %q", name)
				}
				if n < 0 || n > 255 {
					return EncodedTagName{}, status.New(status.OutOfBounds, "bit index %d out of range 0..255", n)
				}
				result.HasBit = true
				result.Bit = n
				continue
			}
			seg, err := p.symseg()
			if err != nil {
				return EncodedTagName{}, err
			}
			body = append(body, encodeSymSeg(seg)...)
		case '[':
			p.advance()
			nums, err := p.numSegList()
			if err != nil {
				return EncodedTagName{}, err
			}
			for _, n := range nums {
				body = append(body, encodeNumSeg(n)...)
			}
		default:
			return EncodedTagName{}, status.New(status.BadParam, "unexpected character %q in tag name %q", string(p.peek()), name)
		}
	}

	prefixed := make([]byte, 1+len(body))
	prefixed[0] = byte((len(body)) / 2)
	copy(prefixed[1:], body)
	result.Path = prefixed
	return result, nil
}

func encodeSymSeg(s string) []byte {
	out := []byte{0x91, byte(len(s))}
	out = append(out, []byte(s)...)
	if len(s)%2 != 0 {
		out = append(out, 0x00)
	}
	return out
}

func encodeNumSeg(v uint32) []byte {
	switch {
	case v < 256:
		return []byte{0x28, byte(v)}
	case v < 65536:
		return []byte{0x29, 0x00, byte(v), byte(v >> 8)}
	default:
		return []byte{0x2A, 0x00, byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
	}
}

type tagParser struct {
	s   string
	pos int
}

func (p *tagParser) done() bool { return p.pos >= len(p.s) }
func (p *tagParser) peek() byte { return p.s[p.pos] }
func (p *tagParser) advance()   { p.pos++ }

func (p *tagParser) allDigits() bool {
	if p.done() {
		return false
	}
	for i := p.pos; i < len(p.s); i++ {
		c := p.s[i]
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func isSymStart(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || c == '_' || c == ':'
}

func isSymCont(c byte) bool {
	return isSymStart(c) || (c >= '0' && c <= '9')
}

func (p *tagParser) symseg() (string, error) {
	start := p.pos
	if p.done() || !isSymStart(p.peek()) {
		return "", status.New(status.BadParam, "expected symbolic segment at position %d in %q", p.pos, p.s)
	}
	p.advance()
	for !p.done() && isSymCont(p.peek()) {
		p.advance()
	}
	return p.s[start:p.pos], nil
}

func (p *tagParser) intLiteral() (int, error) {
	start := p.pos
	for !p.done() && p.peek() >= '0' && p.peek() <= '9' {
		p.advance()
	}
	if p.pos == start {
		return 0, status.New(status.BadParam, "expected integer at position %d in %q", start, p.s)
	}
	n, err := strconv.Atoi(p.s[start:p.pos])
	if err != nil {
		return 0, status.New(status.BadParam, "invalid integer %q", p.s[start:p.pos])
	}
	return n, nil
}

func (p *tagParser) numSegList() ([]uint32, error) {
	var nums []uint32
	for {
		start := p.pos
		for !p.done() && p.peek() >= '0' && p.peek() <= '9' {
			p.advance()
		}
		if p.pos == start {
			return nil, status.New(status.BadParam, "expected numeric segment at position %d in %q", start, p.s)
		}
		n, err := strconv.ParseUint(p.s[start:p.pos], 10, 32)
		if err != nil {
			return nil, status.New(status.BadParam, "invalid numeric segment %q", p.s[start:p.pos])
		}
		nums = append(nums, uint32(n))
		if p.done() {
			return nil, status.New(status.BadParam, "unterminated '[' in tag name %q", p.s)
		}
		switch p.peek() {
		case ',':
			if len(nums) >= 3 {
				return nil, status.New(status.BadParam, "too many numeric segments in %q", p.s)
			}
			p.advance()
			continue
		case ']':
			p.advance()
			return nums, nil
		default:
			return nil, status.New(status.BadParam, "expected ',' or ']' at position %d in %q", p.pos, p.s)
		}
	}
}
