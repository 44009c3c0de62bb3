package blockchain

import (
	"math/big"

	"github.com/bitcoin-sv/minichain/model"
	"github.com/bitcoin-sv/minichain/services/blockchain/work"
)

// blockNode is a block in the tree of known blocks. Every node except genesis has a parent; the
// chain work of a node is the total work from genesis up to and including it.
type blockNode struct {
	block     *model.Block
	parent    *blockNode
	children  []*blockNode
	chainWork *big.Int
}

func newBlockNode(block *model.Block, parent *blockNode) *blockNode {
	var prevWork *big.Int
	if parent != nil {
		prevWork = parent.chainWork
	}

	node := &blockNode{
		block:     block,
		parent:    parent,
		chainWork: work.CalculateWork(prevWork, block.Header.Difficulty),
	}

	if parent != nil {
		parent.children = append(parent.children, node)
	}

	return node
}

func (n *blockNode) height() uint32 {
	return n.block.Index
}

// path returns the nodes from genesis to n.
func (n *blockNode) path() []*blockNode {
	length := 0
	for node := n; node != nil; node = node.parent {
		length++
	}

	nodes := make([]*blockNode, length)
	for node := n; node != nil; node = node.parent {
		length--
		nodes[length] = node
	}

	return nodes
}

func (n *blockNode) removeChild(child *blockNode) {
	for i, c := range n.children {
		if c == child {
			n.children = append(n.children[:i], n.children[i+1:]...)
			return
		}
	}
}

func blocksOf(nodes []*blockNode) []*model.Block {
	blocks := make([]*model.Block, 0, len(nodes))
	for _, node := range nodes {
		blocks = append(blocks, node.block)
	}

	return blocks
}
