package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyAppendsImportWhenSearchEmpty(t *testing.T) {
	orig := "def f():\n    pass\n"

	patched, reason := Apply(orig, "", "import json\n")
	assert.Equal(t, ReasonAppended, reason)
	assert.Equal(t, "import json\ndef f():\n    pass\n", patched)
}

func TestApplyReindentsReplacement(t *testing.T) {
	orig := "class A:\n    def m(self):\n        return 1\n"

	patched, reason := Apply(orig, "def m(self):\n    return 1", "def m(self):\n    return 2")
	assert.Equal(t, ReasonOK, reason)
	assert.Equal(t, "class A:\n    def m(self):\n        return 2\n", patched)
}

func TestApplyAmbiguousMatchLeavesFileUntouched(t *testing.T) {
	orig := "def a():\n    return 1\n\ndef b():\n    return 1\n"

	patched, reason := Apply(orig, "    return 1", "    return 2")
	assert.Equal(t, ReasonAmbiguous, reason)
	assert.Equal(t, orig, patched)
}

func TestApplyOutcomes(t *testing.T) {
	cases := []struct {
		name    string
		orig    string
		search  string
		replace string
		want    string
		reason  Reason
	}{
		{
			name:    "exact match",
			orig:    "a = 1\nb = 2\n",
			search:  "b = 2",
			replace: "b = 3",
			want:    "a = 1\nb = 3\n",
			reason:  ReasonOK,
		},
		{
			name:    "trailing whitespace tolerated",
			orig:    "a = 1   \nb = 2\n",
			search:  "a = 1",
			replace: "a = 10",
			want:    "a = 10\nb = 2\n",
			reason:  ReasonOK,
		},
		{
			name:    "no match",
			orig:    "a = 1\n",
			search:  "missing()",
			replace: "x",
			want:    "a = 1\n",
			reason:  ReasonNoMatch,
		},
		{
			name:    "identical replacement is noop",
			orig:    "a = 1\nb = 2\n",
			search:  "b = 2",
			replace: "b = 2",
			want:    "a = 1\nb = 2\n",
			reason:  ReasonNoop,
		},
		{
			name:    "empty replace deletes the range",
			orig:    "keep\ndrop1\ndrop2\ntail\n",
			search:  "drop1\ndrop2",
			replace: "",
			want:    "keep\ntail\n",
			reason:  ReasonOK,
		},
		{
			name:    "empty search non-import appends after blank line",
			orig:    "a = 1\n",
			search:  "",
			replace: "def g():\n    pass",
			want:    "a = 1\n\ndef g():\n    pass\n",
			reason:  ReasonAppended,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			patched, reason := Apply(tc.orig, tc.search, tc.replace)
			assert.Equal(t, tc.reason, reason)
			assert.Equal(t, tc.want, patched)
		})
	}
}

func TestApplyFuzzyToleratesOneInteriorLine(t *testing.T) {
	orig := "def f(x):\n    y = x + 1\n    return y\n"
	// Middle line drifted since the search block was written.
	search := "def f(x):\n    y = x + 2\n    return y"

	patched, reason := Apply(orig, search, "def f(x):\n    return x")
	assert.Equal(t, ReasonOK, reason)
	assert.Equal(t, "def f(x):\n    return x\n", patched)
}

func TestApplyFuzzyRequiresMatchingEdges(t *testing.T) {
	orig := "def f(x):\n    y = x + 1\n    return y\n"
	search := "def g(x):\n    y = x + 1\n    return y"

	_, reason := Apply(orig, search, "whatever")
	assert.Equal(t, ReasonNoMatch, reason)
}

func TestParseBlocksCanonicalMarkers(t *testing.T) {
	payload := "<<<<<<< SEARCH\nold line\n=======\nnew line\n>>>>>>> REPLACE\n"

	blocks := ParseBlocks(payload)
	require.Len(t, blocks, 1)
	assert.Equal(t, "old line", blocks[0].Search)
	assert.Equal(t, "new line", blocks[0].Replace)
}

func TestParseBlocksLenientVariants(t *testing.T) {
	cases := []struct {
		name    string
		payload string
	}{
		{
			name:    "anonymous fences",
			payload: "<<<<<<<\nold\n=======\nnew\n>>>>>>>\n",
		},
		{
			name:    "label form",
			payload: "SEARCH:\nold\nREPLACE:\nnew\n",
		},
		{
			name:    "inside code fence",
			payload: "```\n<<<<<<< SEARCH\nold\n=======\nnew\n>>>>>>> REPLACE\n```\n",
		},
		{
			name:    "missing end marker closed by EOF",
			payload: "<<<<<<< SEARCH\nold\n=======\nnew",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			blocks := ParseBlocks(tc.payload)
			require.Len(t, blocks, 1)
			assert.Equal(t, "old", blocks[0].Search)
			assert.Equal(t, "new", blocks[0].Replace)
		})
	}
}

func TestParseBlocksMultiplePairs(t *testing.T) {
	payload := "<<<<<<< SEARCH\na\n=======\nb\n>>>>>>> REPLACE\nprose in between\n<<<<<<< SEARCH\nc\n=======\nd\n>>>>>>> REPLACE\n"

	blocks := ParseBlocks(payload)
	require.Len(t, blocks, 2)
	assert.Equal(t, Block{Search: "a", Replace: "b"}, blocks[0])
	assert.Equal(t, Block{Search: "c", Replace: "d"}, blocks[1])
}

func TestParseBlocksRejectsProse(t *testing.T) {
	assert.Nil(t, ParseBlocks("I could not find the function you mentioned."))
}

func TestApplyAllStopsOnFailure(t *testing.T) {
	orig := "a = 1\nb = 2\n"
	blocks := []Block{
		{Search: "a = 1", Replace: "a = 10"},
		{Search: "never there", Replace: "x"},
	}

	patched, reason, changed := ApplyAll(orig, blocks)
	assert.Equal(t, ReasonNoMatch, reason)
	assert.True(t, changed)
	assert.Equal(t, "a = 10\nb = 2\n", patched)
}

func TestInsertImportAfterExistingBlock(t *testing.T) {
	orig := "import os\nimport sys\n\ndef f():\n    pass\n"

	patched, reason := InsertImport(orig, "import json")
	assert.Equal(t, ReasonAppended, reason)
	assert.Equal(t, "import os\nimport sys\nimport json\n\ndef f():\n    pass\n", patched)

	_, reason = InsertImport(patched, "import json")
	assert.Equal(t, ReasonNoop, reason)
}

func TestInsertAboveMatchesIndentation(t *testing.T) {
	orig := "def f():\n    return 1\n"

	patched, reason := InsertAbove(orig, "return 1", "# about to return")
	assert.Equal(t, ReasonOK, reason)
	assert.Equal(t, "def f():\n    # about to return\n    return 1\n", patched)
}
