// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package dag provides content addressed blocks. Leaf blocks use the raw
// codec and carry no links, directory blocks use dag-pb.
package dag

import (
	"errors"
	"fmt"

	"github.com/ipfs/boxo/ipld/merkledag"
	blocks "github.com/ipfs/go-block-format"
	"github.com/ipfs/go-cid"
	format "github.com/ipfs/go-ipld-format"
	"github.com/multiformats/go-multihash"
)

var (
	ErrHashMismatch     = errors.New("block hash does not match cid")
	ErrUnsupportedCodec = errors.New("unsupported codec")
	ErrInvalidNode      = errors.New("invalid dag-pb node")
)

// Block is a piece of content and its identifier.
type Block struct {
	Cid  cid.Cid
	Data []byte
}

// Link is a named reference from a directory block.
type Link struct {
	Name  string
	Cid   cid.Cid
	Tsize uint64
}

var (
	rawPrefix = cid.Prefix{
		Version:  1,
		Codec:    cid.Raw,
		MhType:   multihash.SHA2_256,
		MhLength: -1,
	}
	dagPBPrefix = merkledag.V1CidPrefix()
)

// Supported reports whether blocks of the cid can be decoded and verified.
func Supported(c cid.Cid) error {
	switch c.Type() {
	case cid.Raw, cid.DagProtobuf:
	default:
		return fmt.Errorf("%w: %#x", ErrUnsupportedCodec, c.Type())
	}
	if mh := c.Prefix().MhType; mh != multihash.SHA2_256 {
		return fmt.Errorf("%w: hash %#x", ErrUnsupportedCodec, mh)
	}
	return nil
}

// FromBlock copies the identifier and the content of a block or an ipld
// node.
func FromBlock(b blocks.Block) Block {
	return Block{Cid: b.Cid(), Data: b.RawData()}
}

// NewLeaf creates a raw block.
func NewLeaf(data []byte) (Block, error) {
	n, err := merkledag.NewRawNodeWPrefix(data, rawPrefix)
	if err != nil {
		return Block{}, err
	}
	return FromBlock(n), nil
}

// NewNode creates a dag-pb block holding the links and data. Links are
// encoded in name order.
func NewNode(links []Link, data []byte) (Block, error) {
	n := merkledag.NodeWithData(data)
	for _, l := range links {
		if !l.Cid.Defined() {
			return Block{}, fmt.Errorf("%w: undefined link %q", ErrInvalidNode, l.Name)
		}
		if err := n.AddRawLink(l.Name, &format.Link{Name: l.Name, Size: l.Tsize, Cid: l.Cid}); err != nil {
			return Block{}, fmt.Errorf("%w: link %q: %v", ErrInvalidNode, l.Name, err)
		}
	}
	b, err := n.EncodeProtobuf(false)
	if err != nil {
		return Block{}, fmt.Errorf("%w: %v", ErrInvalidNode, err)
	}
	c, err := dagPBPrefix.Sum(b)
	if err != nil {
		return Block{}, err
	}
	return Block{Cid: c, Data: b}, nil
}

// Check verifies that the block data hashes to its cid.
func (b Block) Check() error {
	if err := Supported(b.Cid); err != nil {
		return err
	}
	c, err := b.Cid.Prefix().Sum(b.Data)
	if err != nil {
		return err
	}
	if !c.Equals(b.Cid) {
		return fmt.Errorf("%w: %s", ErrHashMismatch, b.Cid)
	}
	return nil
}

// Size returns the length of the block data.
func (b Block) Size() int {
	return len(b.Data)
}

// DecodeNode decodes a dag-pb node.
func DecodeNode(b []byte) (links []Link, data []byte, err error) {
	n, err := merkledag.DecodeProtobuf(b)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidNode, err)
	}
	for _, l := range n.Links() {
		links = append(links, Link{Name: l.Name, Cid: l.Cid, Tsize: l.Size})
	}
	return links, n.Data(), nil
}

// Links returns the cids referenced by a block. Leaf blocks have none.
func Links(b Block) ([]cid.Cid, error) {
	switch b.Cid.Type() {
	case cid.Raw:
		return nil, nil
	case cid.DagProtobuf:
		links, _, err := DecodeNode(b.Data)
		if err != nil {
			return nil, err
		}
		cids := make([]cid.Cid, 0, len(links))
		for _, l := range links {
			cids = append(cids, l.Cid)
		}
		return cids, nil
	}
	return nil, fmt.Errorf("%w: %#x", ErrUnsupportedCodec, b.Cid.Type())
}
