//
//  Copyright © Manetu Inc. All rights reserved.
//

package traps

import (
	"fmt"
	"math/rand/v2"
	"regexp"

	"github.com/manetu/datasentinel/pkg/core/model"
)

// shape describes how to recognize real values of a trap type inside a document and how to
// fabricate a decoy of the same shape.
type shape struct {
	pattern    *regexp.Regexp
	synthesize func() string
}

var (
	firstNames = []string{"Aarav", "Maya", "Rohan", "Isla", "Kabir", "Nora", "Vikram", "Elena", "Arjun", "Leah", "Dev", "Tara"}
	lastNames  = []string{"Mehta", "Larsen", "Iyer", "Quinn", "Bose", "Hartley", "Nair", "Okafor", "Rao", "Lindqvist", "Kapoor", "Walsh"}
	mailHosts  = []string{"mailbox.example", "inbox.example", "postal.example"}
)

func pick(list []string) string {
	return list[rand.IntN(len(list))]
}

var shapes = map[model.TrapType]shape{
	model.TrapEmail: {
		pattern: regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`),
		synthesize: func() string {
			return fmt.Sprintf("%s.%s%04d@%s", pick(firstNames), pick(lastNames), rand.IntN(10000), pick(mailHosts))
		},
	},
	model.TrapPhone: {
		pattern: regexp.MustCompile(`\+?\d[\d\-\s]{7,}\d`),
		synthesize: func() string {
			return fmt.Sprintf("+1-555-%04d-%04d", rand.IntN(10000), rand.IntN(10000))
		},
	},
	model.TrapName: {
		pattern: regexp.MustCompile(`\b[A-Z][a-z]+ [A-Z][a-z]+\b`),
		synthesize: func() string {
			return fmt.Sprintf("%s %s", pick(firstNames), pick(lastNames))
		},
	},
	model.TrapID: {
		pattern: regexp.MustCompile(`\b\d{6,}\b`),
		synthesize: func() string {
			return fmt.Sprintf("9%09d", rand.IntN(1_000_000_000))
		},
	},
}
