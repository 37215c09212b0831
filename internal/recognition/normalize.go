package recognition

import (
	"fmt"

	"parking-anpr/internal/domain/parking"
	"parking-anpr/internal/utils"
)

const DefaultPlateLength = 6

// secondCharFix maps digits OCR commonly reads in place of the letter that
// plates carry in the second position.
var secondCharFix = map[byte]byte{
	'0': 'D',
	'1': 'I',
	'2': 'Z',
	'5': 'S',
	'6': 'G',
	'8': 'B',
}

const secondCharDefault = 'A'

// Normalizer turns a consolidated reading into the canonical session key.
type Normalizer struct {
	Length    int
	MinLength int
}

func NewNormalizer(length, minLength int) *Normalizer {
	if length <= 0 {
		length = DefaultPlateLength
	}
	if minLength <= 0 {
		minLength = 1
	}
	if minLength > length {
		minLength = length
	}
	return &Normalizer{Length: length, MinLength: minLength}
}

// Normalize upper-cases and strips s, forces a letter into the second position
// and truncates to Length. Applying it to its own output changes nothing.
func (n *Normalizer) Normalize(s string) (string, error) {
	plate := []byte(utils.NormalizePlate(s))

	if len(plate) >= 2 && !isLetter(plate[1]) {
		if fix, ok := secondCharFix[plate[1]]; ok {
			plate[1] = fix
		} else {
			plate[1] = secondCharDefault
		}
	}
	if len(plate) > n.Length {
		plate = plate[:n.Length]
	}
	if len(plate) < n.MinLength {
		return "", fmt.Errorf("%w: %q has %d characters, need %d", parking.ErrPlateTooShort, string(plate), len(plate), n.MinLength)
	}
	return string(plate), nil
}

func isLetter(b byte) bool {
	return b >= 'A' && b <= 'Z'
}
