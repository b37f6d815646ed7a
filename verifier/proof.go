package verifier

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254"
)

// Proof is a Groth16 proof together with the public inputs it was made for.
type Proof struct {
	A      bn254.G1Affine
	B      bn254.G2Affine
	C      bn254.G1Affine
	Inputs []*big.Int
}

// callData is the solidity call layout produced by `snarkjs generatecall`:
// G2 coordinates list the imaginary part first.
type callData struct {
	A     []string   `json:"a"`
	B     [][]string `json:"b"`
	C     []string   `json:"c"`
	Input []string   `json:"input"`
}

// snarkjsProof is the proof.json layout written by snarkjs.
type snarkjsProof struct {
	A []string   `json:"pi_a"`
	B [][]string `json:"pi_b"`
	C []string   `json:"pi_c"`
}

// MarshalJSON encodes the proof in call data layout.
func (p *Proof) MarshalJSON() ([]byte, error) {
	out := callData{
		A: formatG1(&p.A),
		B: formatG2(&p.B, calldataOrder),
		C: formatG1(&p.C),
	}
	out.Input = make([]string, 0, len(p.Inputs))
	for _, in := range p.Inputs {
		out.Input = append(out.Input, in.String())
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a proof in call data layout.
func (p *Proof) UnmarshalJSON(data []byte) error {
	var in callData
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	var (
		res Proof
		err error
	)
	if res.A, err = parseG1(in.A); err != nil {
		return fmt.Errorf("a: %w", err)
	}
	if res.B, err = parseG2(in.B, calldataOrder); err != nil {
		return fmt.Errorf("b: %w", err)
	}
	if res.C, err = parseG1(in.C); err != nil {
		return fmt.Errorf("c: %w", err)
	}
	if res.Inputs, err = parseInputs(in.Input); err != nil {
		return err
	}

	*p = res
	return nil
}

// ParseSnarkJSProof decodes the proof.json and public.json documents written
// by snarkjs.
func ParseSnarkJSProof(proofJSON, publicJSON []byte) (*Proof, error) {
	var in snarkjsProof
	if err := json.Unmarshal(proofJSON, &in); err != nil {
		return nil, fmt.Errorf("failed to decode proof: %w", err)
	}
	var public []string
	if err := json.Unmarshal(publicJSON, &public); err != nil {
		return nil, fmt.Errorf("failed to decode public inputs: %w", err)
	}

	var (
		res Proof
		err error
	)
	if res.A, err = parseG1(in.A); err != nil {
		return nil, fmt.Errorf("pi_a: %w", err)
	}
	if res.B, err = parseG2(in.B, snarkjsOrder); err != nil {
		return nil, fmt.Errorf("pi_b: %w", err)
	}
	if res.C, err = parseG1(in.C); err != nil {
		return nil, fmt.Errorf("pi_c: %w", err)
	}
	if res.Inputs, err = parseInputs(public); err != nil {
		return nil, err
	}
	return &res, nil
}

func parseInputs(raw []string) ([]*big.Int, error) {
	inputs := make([]*big.Int, 0, len(raw))
	for _, s := range raw {
		v, err := parseScalar(s)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, v)
	}
	return inputs, nil
}
