package mail

import (
	"regexp"
	"strings"
	"unicode"
)

// maxBatchSize is the provider-imposed ceiling on personalizations per send.
const maxBatchSize = 995

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// IsEmail reports whether s looks like a deliverable address. Same loose
// shape check the provider accepts; real validation happens at delivery.
func IsEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// ParseRecipients accepts either a JSON list or a single string split on
// commas, semicolons and whitespace. Empty entries are dropped.
func ParseRecipients(input any) []string {
	switch v := input.(type) {
	case nil:
		return nil
	case []string:
		return cleanRecipients(v)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return cleanRecipients(out)
	case string:
		return cleanRecipients(strings.FieldsFunc(v, func(r rune) bool {
			return r == ',' || r == ';' || unicode.IsSpace(r)
		}))
	default:
		return nil
	}
}

func cleanRecipients(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ChunkRecipients partitions recipients into batches of at most size.
func ChunkRecipients(recipients []string, size int) [][]string {
	if size < 1 || len(recipients) == 0 {
		return nil
	}

	batches := make([][]string, 0, (len(recipients)+size-1)/size)
	for start := 0; start < len(recipients); start += size {
		end := start + size
		if end > len(recipients) {
			end = len(recipients)
		}
		batches = append(batches, recipients[start:end])
	}
	return batches
}

// ClampBatchSize applies the default and the provider ceiling. Zero or
// negative means "use the default".
func ClampBatchSize(n int) int {
	if n <= 0 {
		return maxBatchSize
	}
	if n > maxBatchSize {
		return maxBatchSize
	}
	return n
}
