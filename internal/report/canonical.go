package report

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"
	"unicode/utf16"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/dlsan/internal/engine"
)

// DomainReport prefixes report digests. The version suffix allows the
// rendering to change without colliding with stored digests.
const DomainReport = "dlsan/report/v1"

// MarshalCanonical produces RFC 8785 canonical JSON.
//
// Differences from json.Marshal:
//  1. Object keys sorted by UTF-16 code units (not UTF-8 bytes)
//  2. No HTML escaping, and U+2028/U+2029 are written literally
//  3. Strings are NFC normalized
//  4. No floats and no null (returns error)
//
// Supported values: string, int, int64, bool, []any and map[string]any.
func MarshalCanonical(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MarshalReport renders r as canonical JSON.
func MarshalReport(r *engine.Report) ([]byte, error) {
	return MarshalCanonical(ReportObject(r))
}

// Digest is the SHA-256 of the canonical report with domain separation:
// SHA256(DomainReport + 0x00 + canonical JSON).
//
// The scope ID is excluded so that two runs producing the same verdicts
// share a digest.
func Digest(r *engine.Report) (string, error) {
	obj := ReportObject(r)
	delete(obj, "scope_id")

	data, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("digest: %w", err)
	}

	h := sha256.New()
	h.Write([]byte(DomainReport))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ReportObject converts r to the generic object tree MarshalCanonical
// accepts. Keys are snake_case.
func ReportObject(r *engine.Report) map[string]any {
	verdicts := make([]any, len(r.Verdicts))
	for i, v := range r.Verdicts {
		verdicts[i] = VerdictObject(v)
	}

	failures := make([]any, len(r.Failures))
	for i, f := range r.Failures {
		kinds := make([]any, len(f.Kinds))
		for j, kc := range f.Kinds {
			kinds[j] = map[string]any{
				"kind":  kc.Kind.String(),
				"count": kc.Count,
			}
		}
		failures[i] = map[string]any{
			"line":  f.Line,
			"kinds": kinds,
		}
	}

	return map[string]any{
		"scope_id": r.ScopeID,
		"pass":     r.Pass,
		"function": r.Function,
		"module":   r.Module,
		"events":   r.Events,
		"verdicts": verdicts,
		"failures": failures,
		"passed":   r.Passed,
		"failed":   r.Failed,
		"warned":   r.Warned,
	}
}

// VerdictObject converts one verdict, including its provenance.
func VerdictObject(v engine.Verdict) map[string]any {
	p := v.Provenance
	sites := make([]any, len(p.ReplaceSites))
	for i, s := range p.ReplaceSites {
		sites[i] = s
	}

	return map[string]any{
		"node":     int64(v.Node),
		"label":    v.Label,
		"status":   string(v.Status),
		"expected": v.Expected.String(),
		"provenance": map[string]any{
			"construct_kind":     p.ConstructKind.String(),
			"construct_site":     p.ConstructSite,
			"replaced_count":     p.ReplacedCount,
			"replaced_in_region": p.ReplacedInRegion,
			"inserted_in_region": p.InsertedInRegion,
			"replace_sites":      sites,
			"insertion_site":     p.InsertionSite,
			"update_kind":        p.UpdateKind.String(),
			"update_site":        p.UpdateSite,
		},
	}
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		return fmt.Errorf("null is forbidden in canonical JSON")
	case string:
		return writeCanonicalString(buf, val)
	case int:
		fmt.Fprintf(buf, "%d", val)
	case int64:
		fmt.Fprintf(buf, "%d", val)
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case []any:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, elem); err != nil {
				return fmt.Errorf("array[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		// RFC 8785 orders keys by UTF-16 code units, not UTF-8 bytes.
		slices.SortFunc(keys, compareUTF16)

		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonicalString(buf, k); err != nil {
				return fmt.Errorf("key %q: %w", k, err)
			}
			buf.WriteByte(':')
			if err := writeCanonical(buf, val[k]); err != nil {
				return fmt.Errorf("value for key %q: %w", k, err)
			}
		}
		buf.WriteByte('}')
	case float64, float32:
		return fmt.Errorf("floats are forbidden in canonical JSON: %v", val)
	default:
		return fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
	return nil
}

// writeCanonicalString writes s NFC normalized. Only control characters,
// backslash and quote are escaped.
func writeCanonicalString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(norm.NFC.String(s)); err != nil {
		return err
	}
	out := bytes.TrimSuffix(tmp.Bytes(), []byte{'\n'})
	buf.Write(unescapeLineSeparators(out))
	return nil
}

// unescapeLineSeparators turns the \u2028 and \u2029 escapes json.Encoder
// always emits back into literal characters. An escape preceded by an odd
// number of backslashes is literal text and is left alone.
func unescapeLineSeparators(data []byte) []byte {
	if !bytes.Contains(data, []byte(`\u202`)) {
		return data
	}

	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		if data[i] == '\\' && i+5 < len(data) && string(data[i+1:i+5]) == "u202" &&
			(data[i+5] == '8' || data[i+5] == '9') && trailingBackslashes(out)%2 == 0 {
			if data[i+5] == '8' {
				out = append(out, "\u2028"...)
			} else {
				out = append(out, "\u2029"...)
			}
			i += 5
			continue
		}
		out = append(out, data[i])
	}
	return out
}

func trailingBackslashes(b []byte) int {
	n := 0
	for j := len(b) - 1; j >= 0 && b[j] == '\\'; j-- {
		n++
	}
	return n
}

func compareUTF16(a, b string) int {
	return slices.Compare(utf16.Encode([]rune(a)), utf16.Encode([]rune(b)))
}
