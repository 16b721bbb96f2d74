package normalize

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "empty", input: "", expected: ""},
		{name: "whitespace only", input: "   \t\n", expected: ""},
		{name: "lower cases", input: "HELLO There", expected: "hello there"},
		{name: "strips punctuation", input: "Hello!!! How are you?", expected: "hello how are you"},
		{name: "hyphen becomes space", input: "Non-AC storage", expected: "non ac storage"},
		{name: "expands informal tokens", input: "can u tell me ur rates pls", expected: "can you tell me your rates please"},
		{name: "apostrophes are joined", input: "What's the rate?", expected: "what is the rate"},
		{name: "keeps decimal point", input: "store 2.5 cbm.", expected: "store 2.5 cbm"},
		{name: "drops thousands separator", input: "1,200 pallets", expected: "1200 pallets"},
		{name: "strips diacritics", input: "Café Mussafah", expected: "cafe mussafah"},
		{name: "en dash label", input: "Open Yard – KIZAD", expected: "open yard kizad"},
		{name: "ampersand", input: "packing&labeling", expected: "packing and labeling"},
		{name: "collapses spaces", input: "  open    shed  ", expected: "open shed"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Normalize(tc.input))
		})
	}
}

func TestNewWithExtraAbbreviations(t *testing.T) {
	n := New(map[string]string{"WH": "warehouse", "u": "you all"})

	assert.Equal(t, "warehouse rate for you all", n.Normalize("wh rate for u"))
	// the package default is unaffected
	assert.Equal(t, "wh", Normalize("wh"))
}

func TestNormalizeIsIdempotent(t *testing.T) {
	inputs := []string{
		"Calculate packing for 10 pallet!",
		"Open Yard – Mussafah, 100 SQM",
		"thx, u r great",
	}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}

func TestNormalizeConcurrent(t *testing.T) {
	n := New(nil)
	input := "Café Réservé, Ünïcode storage " + strings.Repeat("Crème brûlée à la carte ", 20)
	expected := n.Normalize(input)

	const workers = 16
	var wg sync.WaitGroup
	mismatches := make(chan string, workers)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				if got := n.Normalize(input); got != expected {
					mismatches <- got
					return
				}
			}
		}()
	}
	wg.Wait()
	close(mismatches)

	for got := range mismatches {
		t.Errorf("concurrent Normalize returned %q, want %q", got, expected)
	}
	assert.Contains(t, expected, "cafe reserve")
}
