// Package huffman builds per-stream prefix codes over RLE pairs and packs
// pair sequences into a bitstream.
//
// The code table is transmitted with the stream, so the decoder never rebuilds
// the tree; tie-breaking only has to be deterministic on the encoder side.
package huffman

import (
	"container/heap"
	"fmt"
	"sort"
	"strings"

	"github.com/chriscow/irmcodec/internal/bits"
	"github.com/chriscow/irmcodec/internal/rle"
	"github.com/chriscow/irmcodec/pkg/irm"
)

// MaxCodeLen is the longest codeword a table can hold.
const MaxCodeLen = 64

// Code is a codeword: the low Len bits of Bits, most significant first.
type Code struct {
	Bits uint64
	Len  uint8
}

// String renders the codeword as a bit string, e.g. "0110".
func (c Code) String() string {
	b := make([]byte, c.Len)
	for i := range b {
		if c.Bits>>(uint(c.Len)-1-uint(i))&1 == 1 {
			b[i] = '1'
		} else {
			b[i] = '0'
		}
	}
	return string(b)
}

// HasPrefix reports whether p is a prefix of c (or equal to it).
func (c Code) HasPrefix(p Code) bool {
	if p.Len > c.Len {
		return false
	}
	return c.Bits>>(c.Len-p.Len) == p.Bits
}

// Entry maps one symbol to its codeword.
type Entry struct {
	Symbol rle.Pair
	Code   Code
}

// Table is a prefix-free symbol to codeword mapping with its decode trie.
type Table struct {
	entries []Entry
	codes   map[rle.Pair]Code
	trie    []trieNode
}

// node is a heap element during tree construction. seq orders equal
// frequencies by creation: leaves in first-appearance order, then merges.
type node struct {
	freq        int
	seq         int
	sym         rle.Pair
	leaf        bool
	left, right *node
}

type nodeHeap []*node

func (h nodeHeap) Len() int { return len(h) }
func (h nodeHeap) Less(i, j int) bool {
	if h[i].freq != h[j].freq {
		return h[i].freq < h[j].freq
	}
	return h[i].seq < h[j].seq
}
func (h nodeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *nodeHeap) Push(x any)   { *h = append(*h, x.(*node)) }
func (h *nodeHeap) Pop() any {
	old := *h
	n := old[len(old)-1]
	*h = old[:len(old)-1]
	return n
}

// Build counts symbol frequencies and derives a code table by repeatedly
// merging the two least frequent nodes. The first node popped takes bit 0.
// A single-symbol alphabet gets the 1-bit code "0" so the stream is never
// empty.
func Build(symbols []rle.Pair) (*Table, error) {
	freq := make(map[rle.Pair]int)
	var order []rle.Pair
	for _, s := range symbols {
		if freq[s] == 0 {
			order = append(order, s)
		}
		freq[s]++
	}

	h := make(nodeHeap, 0, len(order))
	for i, s := range order {
		h = append(h, &node{freq: freq[s], seq: i, sym: s, leaf: true})
	}
	heap.Init(&h)

	seq := len(order)
	for h.Len() > 1 {
		lo := heap.Pop(&h).(*node)
		hi := heap.Pop(&h).(*node)
		heap.Push(&h, &node{freq: lo.freq + hi.freq, seq: seq, left: lo, right: hi})
		seq++
	}

	var entries []Entry
	if h.Len() == 1 {
		root := h[0]
		if root.leaf {
			entries = append(entries, Entry{Symbol: root.sym, Code: Code{Bits: 0, Len: 1}})
		} else if err := assign(root, Code{}, &entries); err != nil {
			return nil, err
		}
	}

	return NewTable(entries)
}

func assign(n *node, prefix Code, out *[]Entry) error {
	if n.leaf {
		*out = append(*out, Entry{Symbol: n.sym, Code: prefix})
		return nil
	}
	if prefix.Len >= MaxCodeLen {
		return irm.Errorf(irm.ErrInvalidInput, "huffman.Build", "code length exceeds %d bits", MaxCodeLen)
	}
	if err := assign(n.left, Code{Bits: prefix.Bits << 1, Len: prefix.Len + 1}, out); err != nil {
		return err
	}
	return assign(n.right, Code{Bits: prefix.Bits<<1 | 1, Len: prefix.Len + 1}, out)
}

// NewTable validates entries and builds the decode trie. Entries must have
// distinct symbols, code lengths in [1, MaxCodeLen], and no codeword may be a
// prefix of another.
func NewTable(entries []Entry) (*Table, error) {
	t := &Table{
		entries: make([]Entry, len(entries)),
		codes:   make(map[rle.Pair]Code, len(entries)),
		trie:    []trieNode{newTrieNode()},
	}
	copy(t.entries, entries)
	sortEntries(t.entries)

	for _, e := range t.entries {
		if e.Code.Len == 0 || e.Code.Len > MaxCodeLen {
			return nil, irm.Errorf(irm.ErrCorruptContainer, "huffman.NewTable",
				"symbol %s has code length %d", e.Symbol, e.Code.Len)
		}
		if e.Code.Len < MaxCodeLen && e.Code.Bits>>e.Code.Len != 0 {
			return nil, irm.Errorf(irm.ErrCorruptContainer, "huffman.NewTable",
				"symbol %s code has bits beyond its length", e.Symbol)
		}
		if _, dup := t.codes[e.Symbol]; dup {
			return nil, irm.Errorf(irm.ErrCorruptContainer, "huffman.NewTable", "duplicate symbol %s", e.Symbol)
		}
		if err := t.insert(e); err != nil {
			return nil, err
		}
		t.codes[e.Symbol] = e.Code
	}
	return t, nil
}

// sortEntries orders by code length, then code, which is also a stable
// serialization order.
func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i].Code, entries[j].Code
		if a.Len != b.Len {
			return a.Len < b.Len
		}
		return a.Bits < b.Bits
	})
}

// Len returns the alphabet size.
func (t *Table) Len() int {
	return len(t.entries)
}

// Entries returns a copy of the table ordered by code length then code.
func (t *Table) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Lookup returns the codeword for s.
func (t *Table) Lookup(s rle.Pair) (Code, bool) {
	c, ok := t.codes[s]
	return c, ok
}

// Encode concatenates the codewords of symbols. It returns the packed bytes
// and the number of meaningful bits.
func (t *Table) Encode(symbols []rle.Pair) ([]byte, int, error) {
	w := bits.NewWriter(len(symbols) / 2)
	for i, s := range symbols {
		c, ok := t.codes[s]
		if !ok {
			return nil, 0, irm.Errorf(irm.ErrInvalidInput, "huffman.Encode", "symbol %d (%s) not in table", i, s)
		}
		w.WriteBits(c.Bits, uint(c.Len))
	}
	return w.Bytes(), w.Len(), nil
}

// Decode reads exactly count symbols from data. Trailing padding bits are
// ignored; running out of bits or hitting an unknown codeword is corruption.
func (t *Table) Decode(data []byte, count int) ([]rle.Pair, error) {
	if count < 0 {
		return nil, irm.Errorf(irm.ErrInvalidInput, "huffman.Decode", "negative symbol count %d", count)
	}
	if count == 0 {
		return []rle.Pair{}, nil
	}
	if len(t.entries) == 0 {
		return nil, irm.Errorf(irm.ErrCorruptContainer, "huffman.Decode", "empty table for %d symbols", count)
	}

	// every symbol costs at least one bit
	out := make([]rle.Pair, 0, min(count, len(data)*8))
	r := bits.NewReader(data)
	cur := 0
	for len(out) < count {
		b, err := r.ReadBit()
		if err != nil {
			return nil, irm.Errorf(irm.ErrCorruptContainer, "huffman.Decode",
				"bitstream ended after %d of %d symbols", len(out), count)
		}
		next := t.trie[cur].child[b]
		if next == noNode {
			return nil, irm.Errorf(irm.ErrCorruptContainer, "huffman.Decode",
				"invalid codeword at bit %d", r.Pos())
		}
		cur = int(next)
		if leaf := t.trie[cur].leaf; leaf != noNode {
			out = append(out, t.entries[leaf].Symbol)
			cur = 0
		}
	}
	return out, nil
}

// IsPrefixFree reports whether no codeword in entries is a prefix of another.
func IsPrefixFree(entries []Entry) bool {
	for i, a := range entries {
		for j, b := range entries {
			if i != j && b.Code.HasPrefix(a.Code) {
				return false
			}
		}
	}
	return true
}

// String lists the table as "value,count -> code" lines.
func (t *Table) String() string {
	var sb strings.Builder
	for _, e := range t.entries {
		fmt.Fprintf(&sb, "%s -> %s\n", e.Symbol, e.Code)
	}
	return sb.String()
}
