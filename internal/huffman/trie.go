package huffman

import "github.com/chriscow/irmcodec/pkg/irm"

const noNode = -1

// trieNode is one position in the decode tree. leaf indexes Table.entries.
type trieNode struct {
	child [2]int32
	leaf  int32
}

func newTrieNode() trieNode {
	return trieNode{child: [2]int32{noNode, noNode}, leaf: noNode}
}

// insert walks e's codeword from the root, rejecting any path that runs
// through or ends on an existing codeword.
func (t *Table) insert(e Entry) error {
	idx := int32(len(t.codes))
	cur := 0
	for i := int(e.Code.Len) - 1; i >= 0; i-- {
		if t.trie[cur].leaf != noNode {
			return errNotPrefixFree(e)
		}
		b := (e.Code.Bits >> uint(i)) & 1
		next := t.trie[cur].child[b]
		if next == noNode {
			t.trie = append(t.trie, newTrieNode())
			next = int32(len(t.trie) - 1)
			t.trie[cur].child[b] = next
		}
		cur = int(next)
	}

	n := &t.trie[cur]
	if n.leaf != noNode || n.child[0] != noNode || n.child[1] != noNode {
		return errNotPrefixFree(e)
	}
	n.leaf = idx
	return nil
}

func errNotPrefixFree(e Entry) error {
	return irm.Errorf(irm.ErrCorruptContainer, "huffman.NewTable",
		"code %s for symbol %s conflicts with another codeword", e.Code, e.Symbol)
}
