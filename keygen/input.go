package keygen

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
)

// Input is the proof circuit input document for one recovery identity. The
// private key is the derived scalar, the public keys are the point
// coordinates, all in decimal.
type Input struct {
	PrivateKey string    `json:"privateKey"`
	PublicKeys [2]string `json:"publicKeys"`
}

// Input renders the circuit input for the key pair.
func (kp *KeyPair) Input() Input {
	return Input{
		PrivateKey: kp.Private.String(),
		PublicKeys: [2]string{kp.Public.X.String(), kp.Public.Y.String()},
	}
}

// MarshalInput renders the circuit input document as JSON.
func (kp *KeyPair) MarshalInput() ([]byte, error) {
	return json.Marshal(kp.Input())
}

// ParseInput decodes and validates a circuit input document.
func ParseInput(data []byte) (*Input, error) {
	var in Input
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("failed to decode input: %w", err)
	}
	if _, err := in.PublicKey(); err != nil {
		return nil, err
	}
	if _, err := in.Scalar(); err != nil {
		return nil, err
	}
	return &in, nil
}

// Scalar returns the private scalar.
func (in *Input) Scalar() (*big.Int, error) {
	s, ok := new(big.Int).SetString(in.PrivateKey, 10)
	if !ok || !InField(s) {
		return nil, errors.New("invalid private key in input")
	}
	return s, nil
}

// PublicKey returns the public key point, checked to lie on the curve.
func (in *Input) PublicKey() (Point, error) {
	x, okX := new(big.Int).SetString(in.PublicKeys[0], 10)
	y, okY := new(big.Int).SetString(in.PublicKeys[1], 10)
	if !okX || !okY || !InField(x) || !InField(y) {
		return Point{}, errors.New("invalid public key coordinates in input")
	}
	p := Point{X: x, Y: y}
	if !p.IsOnCurve() {
		return Point{}, errors.New("public key is not on the curve")
	}
	return p, nil
}

// Consistent reports whether the input's public key matches its scalar.
func (in *Input) Consistent() bool {
	s, err := in.Scalar()
	if err != nil {
		return false
	}
	pub, err := in.PublicKey()
	if err != nil {
		return false
	}
	return MulBase8(s).Equal(pub)
}
