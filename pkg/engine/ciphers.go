package engine

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// DefaultCipherList is the cipher string used when none is configured.
const DefaultCipherList = "ALL:!aNULL:!eNULL:!EXPORT:!RC4:!3DES:+HIGH:+MEDIUM"

// CipherSuite describes a suite an engine can negotiate.
type CipherSuite struct {
	// Name is the OpenSSL-style suite name, e.g. "ECDHE-RSA-AES128-GCM-SHA256".
	Name string

	// ID is the IANA suite identifier.
	ID uint16

	// Version is the protocol the suite was introduced for.
	Version string

	// Bits is the effective key strength; AlgBits the algorithm key size.
	Bits    int
	AlgBits int

	// Tags are the keyword groups the suite belongs to (kx, auth, enc,
	// mac and strength class) used by cipher string matching.
	Tags []string
}

func (c CipherSuite) matches(keyword string) bool {
	if keyword == "ALL" || keyword == c.Name {
		return true
	}
	return slices.Contains(c.Tags, keyword)
}

// MatchCipherString selects suites from supported using an OpenSSL-style
// cipher string. Elements are separated by ':', ',' or spaces. A plain
// element appends matching suites; "!x" removes them permanently; "-x"
// removes them; "+x" moves them to the end. "a+b" matches suites carrying
// every keyword. "DEFAULT" expands to DefaultCipherList and "@STRENGTH"
// sorts by Bits, strongest first.
func MatchCipherString(list string, supported []CipherSuite) ([]CipherSuite, error) {
	if strings.TrimSpace(list) == "" {
		list = "DEFAULT"
	}

	var (
		out    []CipherSuite
		banned = map[string]bool{}
	)
	apply := func(elem string) {
		op := byte(0)
		if elem[0] == '!' || elem[0] == '-' || elem[0] == '+' {
			op, elem = elem[0], elem[1:]
		}
		keywords := strings.Split(elem, "+")
		match := func(c CipherSuite) bool {
			for _, k := range keywords {
				if !c.matches(k) {
					return false
				}
			}
			return true
		}

		switch op {
		case '!':
			for _, c := range supported {
				if match(c) {
					banned[c.Name] = true
				}
			}
			out = slices.DeleteFunc(out, match)
		case '-':
			out = slices.DeleteFunc(out, match)
		case '+':
			var moved []CipherSuite
			out = slices.DeleteFunc(out, func(c CipherSuite) bool {
				if match(c) {
					moved = append(moved, c)
					return true
				}
				return false
			})
			out = append(out, moved...)
		default:
			for _, c := range supported {
				if !match(c) || banned[c.Name] {
					continue
				}
				if slices.ContainsFunc(out, func(o CipherSuite) bool { return o.Name == c.Name }) {
					continue
				}
				out = append(out, c)
			}
		}
	}

	for _, elem := range splitCipherString(list) {
		switch elem {
		case "DEFAULT":
			for _, e := range splitCipherString(DefaultCipherList) {
				apply(e)
			}
		case "@STRENGTH":
			sort.SliceStable(out, func(i, j int) bool { return out[i].Bits > out[j].Bits })
		default:
			apply(elem)
		}
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoCipherMatch, list)
	}
	return out, nil
}

// CipherNames returns the names of suites, in order.
func CipherNames(suites []CipherSuite) []string {
	names := make([]string, len(suites))
	for i, c := range suites {
		names[i] = c.Name
	}
	return names
}

func splitCipherString(list string) []string {
	return strings.FieldsFunc(list, func(r rune) bool {
		return r == ':' || r == ',' || r == ' '
	})
}
