package verifier

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254"
)

// VerifyingKey holds the Groth16 verification parameters of one circuit
// setup. IC has one more element than the circuit has public inputs.
type VerifyingKey struct {
	Alpha1 bn254.G1Affine
	Beta2  bn254.G2Affine
	Gamma2 bn254.G2Affine
	Delta2 bn254.G2Affine
	IC     []bn254.G1Affine
}

// snarkjsVerifyingKey is the verification_key.json layout written by snarkjs.
type snarkjsVerifyingKey struct {
	Protocol string     `json:"protocol,omitempty"`
	Curve    string     `json:"curve,omitempty"`
	NPublic  int        `json:"nPublic"`
	Alpha1   []string   `json:"vk_alpha_1"`
	Beta2    [][]string `json:"vk_beta_2"`
	Gamma2   [][]string `json:"vk_gamma_2"`
	Delta2   [][]string `json:"vk_delta_2"`
	IC       [][]string `json:"IC"`
}

// NumPublicInputs is the number of public inputs the key expects.
func (vk *VerifyingKey) NumPublicInputs() int {
	return len(vk.IC) - 1
}

// Validate checks that every point is on its curve and in the prime order
// subgroup.
func (vk *VerifyingKey) Validate() error {
	if len(vk.IC) == 0 {
		return errors.New("verifying key has no IC points")
	}
	if !vk.Alpha1.IsInSubGroup() {
		return fmt.Errorf("%w: alpha1", ErrMalformedPoint)
	}
	for name, p := range map[string]*bn254.G2Affine{"beta2": &vk.Beta2, "gamma2": &vk.Gamma2, "delta2": &vk.Delta2} {
		if !p.IsInSubGroup() {
			return fmt.Errorf("%w: %s", ErrMalformedPoint, name)
		}
	}
	for i := range vk.IC {
		if !vk.IC[i].IsInSubGroup() {
			return fmt.Errorf("%w: IC[%d]", ErrMalformedPoint, i)
		}
	}
	return nil
}

// Clone returns a deep copy.
func (vk *VerifyingKey) Clone() *VerifyingKey {
	c := *vk
	c.IC = append([]bn254.G1Affine(nil), vk.IC...)
	return &c
}

// MarshalJSON encodes the key in the snarkjs verification_key.json layout.
func (vk *VerifyingKey) MarshalJSON() ([]byte, error) {
	out := snarkjsVerifyingKey{
		Protocol: "groth16",
		Curve:    "bn128",
		NPublic:  vk.NumPublicInputs(),
		Alpha1:   formatG1(&vk.Alpha1),
		Beta2:    formatG2(&vk.Beta2, snarkjsOrder),
		Gamma2:   formatG2(&vk.Gamma2, snarkjsOrder),
		Delta2:   formatG2(&vk.Delta2, snarkjsOrder),
	}
	for i := range vk.IC {
		out.IC = append(out.IC, formatG1(&vk.IC[i]))
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a snarkjs verification_key.json document.
func (vk *VerifyingKey) UnmarshalJSON(data []byte) error {
	var in snarkjsVerifyingKey
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	if in.Protocol != "" && in.Protocol != "groth16" {
		return fmt.Errorf("unsupported proving system %q", in.Protocol)
	}

	var (
		res VerifyingKey
		err error
	)
	if res.Alpha1, err = parseG1(in.Alpha1); err != nil {
		return fmt.Errorf("vk_alpha_1: %w", err)
	}
	if res.Beta2, err = parseG2(in.Beta2, snarkjsOrder); err != nil {
		return fmt.Errorf("vk_beta_2: %w", err)
	}
	if res.Gamma2, err = parseG2(in.Gamma2, snarkjsOrder); err != nil {
		return fmt.Errorf("vk_gamma_2: %w", err)
	}
	if res.Delta2, err = parseG2(in.Delta2, snarkjsOrder); err != nil {
		return fmt.Errorf("vk_delta_2: %w", err)
	}
	for i, coords := range in.IC {
		p, err := parseG1(coords)
		if err != nil {
			return fmt.Errorf("IC[%d]: %w", i, err)
		}
		res.IC = append(res.IC, p)
	}
	if in.NPublic != 0 && in.NPublic != res.NumPublicInputs() {
		return fmt.Errorf("nPublic %d does not match %d IC points", in.NPublic, len(res.IC))
	}

	*vk = res
	return nil
}

// ParseVerifyingKeys decodes either a single verification key document or a
// JSON array of them.
func ParseVerifyingKeys(data []byte) ([]*VerifyingKey, error) {
	var many []*VerifyingKey
	if err := json.Unmarshal(data, &many); err == nil {
		return many, nil
	}

	var one VerifyingKey
	if err := json.Unmarshal(data, &one); err != nil {
		return nil, fmt.Errorf("failed to decode verifying key: %w", err)
	}
	return []*VerifyingKey{&one}, nil
}
