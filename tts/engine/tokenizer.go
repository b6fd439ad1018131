package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// Tokenizer converts text to the index/mask pair the inference graphs
// consume. The indexer maps decimal codepoint strings to model vocabulary
// ids; characters outside the vocabulary map to 0.
type Tokenizer struct {
	indexer map[string]int64
}

// NewTokenizer loads the character indexer from its JSON file.
func NewTokenizer(path string) (*Tokenizer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading character indexer: %w", err)
	}
	var indexer map[string]int64
	if err := json.Unmarshal(data, &indexer); err != nil {
		return nil, fmt.Errorf("parsing character indexer %s: %w", path, err)
	}
	return &Tokenizer{indexer: indexer}, nil
}

// Encoded is a padded batch of character indices with its float mask.
type Encoded struct {
	IDs     []int64   // flattened [batch, MaxLen]
	Mask    []float32 // flattened [batch, 1, MaxLen]
	Lengths []int64
	MaxLen  int
}

// Encode tokenizes a batch, padding every row to the longest text. The mask
// is 1.0 where the position index is below the row's length.
func (t *Tokenizer) Encode(texts []string) *Encoded {
	lengths := make([]int64, len(texts))
	rows := make([][]rune, len(texts))
	maxLen := 0
	for i, s := range texts {
		rows[i] = []rune(s)
		lengths[i] = int64(len(rows[i]))
		if len(rows[i]) > maxLen {
			maxLen = len(rows[i])
		}
	}

	ids := make([]int64, len(texts)*maxLen)
	for i, runes := range rows {
		row := ids[i*maxLen : (i+1)*maxLen]
		for j, r := range runes {
			row[j] = t.indexer[strconv.Itoa(int(r))]
		}
	}

	return &Encoded{
		IDs:     ids,
		Mask:    lengthToMask(lengths, maxLen),
		Lengths: lengths,
		MaxLen:  maxLen,
	}
}
