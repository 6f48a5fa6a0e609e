package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleLog = `[Checker] Start checking @foo (test.ll):
fail: Preserve [Construct: 20, Move; Replace: -; Update: 30, Drop; Pass: LICMPass]
pass: Drop [Construct: 10, Clone; Replace: -; Update: 12, Drop; Pass: P]
warn: Any [Construct: 55, Untracked; Replace: 55; Update: -, None; Pass: P]
fail: Merge [Construct: 5, Create; Replace: 40, 41; Update: 50, Preserve; Pass: GVNPass]
[Checker] Fail! 20 (Preserve:1)
[Checker] Finish checking.
[Checker] Start checking @foo (test.ll):
pass: Drop [Construct: 10, Clone; Replace: -; Update: 12, Drop; Pass: P]
pass: Preserve [Construct: 3, Create; Replace: -; Update: 4, Preserve; Pass: P]
fail: Preserve [Construct: 20, Move; Replace: -; Update: 30, Drop; Pass: LICMPass]
[Checker] Finish checking.
`

func TestFilter(t *testing.T) {
	var out bytes.Buffer
	res, err := Filter(strings.NewReader(sampleLog), &out, FilterOptions{})
	require.NoError(t, err)

	assert.Equal(t, FilterResult{Passed: 2, Warned: 1, Failed: 2}, res)
	assert.Equal(t, `[pass] Drop [Construct: 10, Clone; Replace: -; Update: 12, Drop; Pass: P]
[pass] Preserve [Construct: 3, Create; Replace: -; Update: 4, Preserve; Pass: P]
[warn] Any [Construct: 55, Untracked; Replace: 55; Update: -, None; Pass: P]
[fail] Merge [Construct: 5, Create; Replace: 40, 41; Update: 50, Preserve; Pass: GVNPass]
[fail] Preserve [Construct: 20, Move; Replace: -; Update: 30, Drop; Pass: LICMPass]
`, out.String())
}

func TestFilter_Color(t *testing.T) {
	var out bytes.Buffer
	_, err := Filter(strings.NewReader("fail: Drop [Construct: 1, Move; Replace: -; Update: -, None; Pass: P]\n"), &out, FilterOptions{Color: true})
	require.NoError(t, err)

	assert.Equal(t, "[\033[31;1mfail\033[0m] Drop [Construct: 1, Move; Replace: -; Update: -, None; Pass: P]\n", out.String())
}

func TestFilter_Empty(t *testing.T) {
	var out bytes.Buffer
	res, err := Filter(strings.NewReader(""), &out, FilterOptions{})
	require.NoError(t, err)
	assert.Zero(t, res)
	assert.Empty(t, out.String())
}
