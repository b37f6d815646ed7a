package verifier

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fp"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// ErrMalformedPoint is returned when a curve point cannot be decoded.
var ErrMalformedPoint = errors.New("malformed curve point")

// Points are exchanged as decimal strings. A G1 point is [x, y] or the
// projective snarkjs form [x, y, z] with z in {0, 1}. A G2 point lists its
// coordinates as Fp2 pairs, [[x0, x1], [y0, y1]] in snarkjs order (real part
// first) or [[x1, x0], [y1, y0]] in EVM calldata order.

// g2Order selects how Fp2 pairs are laid out.
type g2Order int

const (
	snarkjsOrder g2Order = iota
	calldataOrder
)

func parseFp(s string) (fp.Element, error) {
	var e fp.Element
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 || v.Cmp(fp.Modulus()) >= 0 {
		return e, fmt.Errorf("%w: invalid coordinate %q", ErrMalformedPoint, s)
	}
	e.SetBigInt(v)
	return e, nil
}

func formatFp(e *fp.Element) string {
	return e.BigInt(new(big.Int)).String()
}

func parseG1(coords []string) (bn254.G1Affine, error) {
	var p bn254.G1Affine
	if len(coords) != 2 && len(coords) != 3 {
		return p, fmt.Errorf("%w: G1 needs 2 or 3 coordinates, got %d", ErrMalformedPoint, len(coords))
	}
	if len(coords) == 3 {
		switch coords[2] {
		case "0":
			return p, nil
		case "1":
		default:
			return p, fmt.Errorf("%w: unsupported projective z %q", ErrMalformedPoint, coords[2])
		}
	}

	var err error
	if p.X, err = parseFp(coords[0]); err != nil {
		return p, err
	}
	if p.Y, err = parseFp(coords[1]); err != nil {
		return p, err
	}
	return p, nil
}

func formatG1(p *bn254.G1Affine) []string {
	return []string{formatFp(&p.X), formatFp(&p.Y)}
}

func parseG2(coords [][]string, order g2Order) (bn254.G2Affine, error) {
	var p bn254.G2Affine
	if len(coords) != 2 && len(coords) != 3 {
		return p, fmt.Errorf("%w: G2 needs 2 or 3 coordinate pairs, got %d", ErrMalformedPoint, len(coords))
	}
	if len(coords) == 3 && len(coords[2]) == 2 && coords[2][0] == "0" && coords[2][1] == "0" {
		return p, nil
	}

	parsed := make([]fp.Element, 0, 4)
	for _, pair := range coords[:2] {
		if len(pair) != 2 {
			return p, fmt.Errorf("%w: Fp2 element needs 2 components", ErrMalformedPoint)
		}
		for _, c := range pair {
			e, err := parseFp(c)
			if err != nil {
				return p, err
			}
			parsed = append(parsed, e)
		}
	}

	if order == calldataOrder {
		p.X.A1, p.X.A0, p.Y.A1, p.Y.A0 = parsed[0], parsed[1], parsed[2], parsed[3]
	} else {
		p.X.A0, p.X.A1, p.Y.A0, p.Y.A1 = parsed[0], parsed[1], parsed[2], parsed[3]
	}
	return p, nil
}

func formatG2(p *bn254.G2Affine, order g2Order) [][]string {
	if order == calldataOrder {
		return [][]string{
			{formatFp(&p.X.A1), formatFp(&p.X.A0)},
			{formatFp(&p.Y.A1), formatFp(&p.Y.A0)},
		}
	}
	return [][]string{
		{formatFp(&p.X.A0), formatFp(&p.X.A1)},
		{formatFp(&p.Y.A0), formatFp(&p.Y.A1)},
	}
}

func parseScalar(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid public input %q", s)
	}
	return v, nil
}

// inField reports whether v is a canonical scalar field element.
func inField(v *big.Int) bool {
	return v != nil && v.Sign() >= 0 && v.Cmp(fr.Modulus()) < 0
}
