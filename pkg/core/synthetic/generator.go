//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package synthetic fabricates plausible personal records served to partners in deception
// mode.
package synthetic

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/google/uuid"
)

// Record field names produced by the default generator.
const (
	FieldName     = "name"
	FieldEmail    = "email"
	FieldPhone    = "phone"
	FieldRegion   = "region"
	FieldRecordID = "record_id"
)

// Generator produces one synthetic record for a partner.  Implementations must be safe for
// concurrent use.
type Generator interface {
	Generate(partnerID string) map[string]string
}

// GeneratorFunc adapts a function to [Generator].
type GeneratorFunc func(partnerID string) map[string]string

// Generate calls f.
func (f GeneratorFunc) Generate(partnerID string) map[string]string {
	return f(partnerID)
}

var (
	firstNames = []string{"Liam", "Ava", "Noah", "Zara", "Ethan", "Ishita", "Lucas", "Mila", "Omar", "Sofia", "Yusuf", "Chloe", "Hiro", "Anika"}
	lastNames  = []string{"Fernandes", "Nakamura", "Schultz", "Gupta", "Moreau", "Adeyemi", "Costa", "Novak", "Reddy", "Keller", "Silva", "Brennan"}
	domains    = []string{"example.com", "example.net", "example.org"}
	countries  = []string{"India", "Germany", "Brazil", "Japan", "Canada", "Kenya", "France", "Australia", "Mexico", "Singapore"}
)

type defaultGenerator struct{}

// NewGenerator returns the built-in generator.
func NewGenerator() Generator {
	return defaultGenerator{}
}

func pick(list []string) string {
	return list[rand.IntN(len(list))]
}

func (defaultGenerator) Generate(string) map[string]string {
	first, last := pick(firstNames), pick(lastNames)
	return map[string]string{
		FieldName:     first + " " + last,
		FieldEmail:    fmt.Sprintf("%s.%s@%s", strings.ToLower(first), strings.ToLower(last), pick(domains)),
		FieldPhone:    fmt.Sprintf("+1-%03d-%03d-%04d", 200+rand.IntN(800), rand.IntN(1000), rand.IntN(10000)),
		FieldRegion:   pick(countries),
		FieldRecordID: uuid.NewString(),
	}
}
