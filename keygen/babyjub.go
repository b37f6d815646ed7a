package keygen

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/twistededwards"
)

// Baby Jubjub in the circomlib parametrisation: a·x² + y² = 1 + d·x²·y².
// gnark-crypto uses the isomorphic a = -1 form; both share the y coordinate
// and x differs by a constant factor.
var (
	babyJubA = big.NewInt(168700)
	babyJubD = big.NewInt(168696)

	// Base8 generates the prime-order subgroup.
	Base8 = Point{
		X: mustBigInt("5299619240641551281634865583518297030282874472190772894086521144482721001553"),
		Y: mustBigInt("16950150798460657717958625567821834550301663161624707787222815936182638968203"),
	}

	// SubgroupOrder is the order of Base8.
	SubgroupOrder = mustBigInt("2736030358979909402780800718157159386076813972158567259200215660948447373041")

	// xScale maps a gnark-form x coordinate to the circomlib form.
	xScale fr.Element
)

func init() {
	params := twistededwards.GetEdwardsCurve()
	if !params.Base.Y.Equal(toElement(Base8.Y)) {
		panic("babyjub: unexpected twisted edwards base point")
	}
	var inv fr.Element
	inv.Inverse(&params.Base.X)
	xScale.Mul(toElement(Base8.X), &inv)
}

// Point is an affine Baby Jubjub point in circomlib coordinates.
type Point struct {
	X *big.Int `json:"x"`
	Y *big.Int `json:"y"`
}

// String renders the point as (x, y) in decimal.
func (p Point) String() string {
	return fmt.Sprintf("(%s, %s)", p.X, p.Y)
}

// Equal compares two points.
func (p Point) Equal(o Point) bool {
	return p.X.Cmp(o.X) == 0 && p.Y.Cmp(o.Y) == 0
}

// IsOnCurve checks the circomlib curve equation.
func (p Point) IsOnCurve() bool {
	x, y := toElement(p.X), toElement(p.Y)
	var a, d, x2, y2, lhs, rhs fr.Element
	a.SetBigInt(babyJubA)
	d.SetBigInt(babyJubD)
	x2.Square(x)
	y2.Square(y)

	lhs.Mul(&a, &x2).Add(&lhs, &y2)
	rhs.Mul(&d, &x2).Mul(&rhs, &y2)
	var one fr.Element
	one.SetOne()
	rhs.Add(&rhs, &one)
	return lhs.Equal(&rhs)
}

// MulBase8 returns s·Base8.
func MulBase8(s *big.Int) Point {
	params := twistededwards.GetEdwardsCurve()
	var res twistededwards.PointAffine
	res.ScalarMultiplication(&params.Base, s)

	var x fr.Element
	x.Mul(&res.X, &xScale)
	return Point{
		X: x.BigInt(new(big.Int)),
		Y: res.Y.BigInt(new(big.Int)),
	}
}

func toElement(v *big.Int) *fr.Element {
	var e fr.Element
	e.SetBigInt(v)
	return &e
}

func mustBigInt(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("keygen: invalid constant " + s)
	}
	return v
}
