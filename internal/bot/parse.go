package bot

import (
	"fmt"
	"strconv"
	"strings"

	"propfeed/internal/filter"
	"propfeed/internal/model"
	"propfeed/internal/partition"
)

var amountSuffixes = []struct {
	suffix string
	factor float64
}{
	{"crore", 1e7},
	{"cr.", 1e7},
	{"cr", 1e7},
	{"lakh", 1e5},
	{"lac", 1e5},
	{"l", 1e5},
	{"thousand", 1e3},
	{"k", 1e3},
}

// ParseAmount parses a bid amount such as "250000", "2,50,000", "2.5L" or
// "1.2 Cr". It does not check the sign; the ledger validates that.
func ParseAmount(s string) (float64, error) {
	v := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), ",", ""))
	factor := 1.0
	for _, sf := range amountSuffixes {
		if strings.HasSuffix(v, sf.suffix) {
			v = strings.TrimSpace(strings.TrimSuffix(v, sf.suffix))
			factor = sf.factor
			break
		}
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || v == "" {
		return 0, model.NewError(model.KindInvalidAmount, "parse amount", fmt.Errorf("%q is not an amount", s))
	}
	return f * factor, nil
}

// ParseBidArgs parses "<lead> <amount>".
func ParseBidArgs(args string) (string, float64, error) {
	lead, rest, ok := strings.Cut(strings.TrimSpace(args), " ")
	if !ok || lead == "" || strings.TrimSpace(rest) == "" {
		return "", 0, fmt.Errorf("usage: /bid <lead> <amount>")
	}
	amount, err := ParseAmount(rest)
	if err != nil {
		return "", 0, err
	}
	return lead, amount, nil
}

// ParseLoginArgs parses "<user> <token>".
func ParseLoginArgs(args string) (string, string, error) {
	parts := strings.Fields(args)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("usage: /login <user> <token>")
	}
	return parts[0], parts[1], nil
}

// ParseLeadArg extracts a lead ID from a command argument string.
func ParseLeadArg(args string) (string, error) {
	parts := strings.Fields(args)
	if len(parts) == 0 {
		return "", fmt.Errorf("lead ID is required")
	}
	return parts[0], nil
}

// ParseSearchArgs parses the optional search of /sale, /rent and /featured.
func ParseSearchArgs(args string) (filter.Query, error) {
	q, err := filter.Parse(args)
	if err != nil {
		return nil, fmt.Errorf("invalid search: %w", err)
	}
	return q, nil
}

// ParseBucketArg parses the bucket of /more, defaulting to def.
func ParseBucketArg(args string, def partition.Name) (partition.Name, error) {
	s := strings.TrimSpace(args)
	if s == "" {
		return def, nil
	}
	return partition.Parse(strings.Fields(s)[0])
}
