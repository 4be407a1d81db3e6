package strategy

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads a strategy file. Unknown keys are errors: a typoed option must
// fail loudly rather than silently fall back to a default.
func Load(path string) (*Strategy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read strategy file: %w", err)
	}
	return Parse(raw)
}

// Parse decodes strategy YAML. A section omitted entirely inherits the
// default settings; a section that is present is taken literally, so a
// partial section must spell out everything it needs.
func Parse(raw []byte) (*Strategy, error) {
	var s Strategy
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("decode strategy: %w", err)
	}

	def := Default()
	if s.Name == "" {
		s.Name = def.Name
	}
	if s.Weights == nil {
		s.Weights = def.Weights
	}
	zero := Strategy{}
	if s.Normalization == zero.Normalization {
		s.Normalization = def.Normalization
	}
	if s.Gates == zero.Gates {
		s.Gates = def.Gates
	}
	if s.Portfolio == zero.Portfolio {
		s.Portfolio = def.Portfolio
	}
	if s.Backtest == zero.Backtest {
		s.Backtest = def.Backtest
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	s.hash = hashBytes(raw)
	return &s, nil
}

func hashBytes(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// hashStrategy fingerprints an in-memory strategy by its marshaled form,
// used for the built-in default which has no file to hash.
func hashStrategy(s *Strategy) string {
	out, err := yaml.Marshal(s)
	if err != nil {
		return ""
	}
	return hashBytes(out)
}
