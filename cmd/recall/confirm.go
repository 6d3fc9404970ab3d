package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/lexlapax/recall/pkg/mem/ltm"
)

// promptConfirmer asks on the same input the commands come from.
type promptConfirmer struct {
	in lineReader
}

func newConfirmer(in lineReader) *promptConfirmer {
	return &promptConfirmer{in: in}
}

// Confirm implements extraction.Confirmer. Only an explicit yes stores the
// fact.
func (c *promptConfirmer) Confirm(ctx context.Context, fact ltm.Fact) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	prompt := fmt.Sprintf("Remember %q? [y/N] ", fact.Text())
	if fact.Category != "" {
		prompt = fmt.Sprintf("Remember %q (%s)? [y/N] ", fact.Text(), fact.Category)
	}

	answer, err := c.in.ReadLine(prompt)
	if err != nil {
		return false, err
	}
	return isYes(answer), nil
}

func isYes(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
