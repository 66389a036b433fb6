// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package unixfs imports files and directories as UnixFS dags. File
// content is split into raw leaves linked from a balanced tree of dag-pb
// file nodes, directories are dag-pb nodes linking their entries by name.
package unixfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	chunker "github.com/ipfs/boxo/chunker"
	"github.com/ipfs/boxo/ipld/merkledag"
	ft "github.com/ipfs/boxo/ipld/unixfs"
	"github.com/ipfs/boxo/ipld/unixfs/importer/balanced"
	"github.com/ipfs/boxo/ipld/unixfs/importer/helpers"
	"github.com/ipfs/go-cid"
	format "github.com/ipfs/go-ipld-format"
	"github.com/spf13/afero"
	"github.com/tabcat/zzzync/pkg/blockstore"
	"github.com/tabcat/zzzync/pkg/dag"
)

const (
	// DefaultChunkSize is the size of file leaves.
	DefaultChunkSize = 256 << 10
	// DefaultMaxLinks is the maximum number of links of a file node.
	DefaultMaxLinks = 174
)

var ErrUnsupportedFile = errors.New("unsupported file type")

type Options struct {
	ChunkSize int
	MaxLinks  int
	// Hidden includes entries whose name starts with a dot.
	Hidden bool
}

type Importer struct {
	fs        afero.Fs
	store     blockstore.Putter
	chunkSize int
	maxLinks  int
	hidden    bool
}

func NewImporter(fs afero.Fs, store blockstore.Putter, o Options) *Importer {
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.MaxLinks < 2 {
		o.MaxLinks = DefaultMaxLinks
	}
	return &Importer{
		fs:        fs,
		store:     store,
		chunkSize: o.ChunkSize,
		maxLinks:  o.MaxLinks,
		hidden:    o.Hidden,
	}
}

// Entry is an imported file or directory.
type Entry struct {
	Cid cid.Cid
	// Size is the size of the file content, zero for directories.
	Size uint64
	// Tsize is the total size of the blocks of the dag.
	Tsize uint64
}

// Import imports the file or directory at name.
func (i *Importer) Import(ctx context.Context, name string) (Entry, error) {
	info, err := i.fs.Stat(name)
	if err != nil {
		return Entry{}, err
	}
	switch {
	case info.IsDir():
		return i.importDir(ctx, name)
	case info.Mode().IsRegular():
		f, err := i.fs.Open(name)
		if err != nil {
			return Entry{}, err
		}
		defer f.Close()
		return i.AddFile(ctx, f)
	}
	return Entry{}, fmt.Errorf("%w: %s: %s", ErrUnsupportedFile, name, info.Mode().Type())
}

func (i *Importer) importDir(ctx context.Context, name string) (Entry, error) {
	infos, err := afero.ReadDir(i.fs, name)
	if err != nil {
		return Entry{}, err
	}

	var links []dag.Link
	var tsize uint64
	for _, info := range infos {
		if !i.hidden && strings.HasPrefix(info.Name(), ".") {
			continue
		}
		if info.Mode()&os.ModeSymlink != 0 {
			continue
		}
		e, err := i.Import(ctx, path.Join(name, info.Name()))
		if err != nil {
			return Entry{}, err
		}
		links = append(links, dag.Link{Name: info.Name(), Cid: e.Cid, Tsize: e.Tsize})
		tsize += e.Tsize
	}

	b, err := dag.NewNode(links, ft.FolderPBData())
	if err != nil {
		return Entry{}, err
	}
	if err := i.store.Put(ctx, b); err != nil {
		return Entry{}, err
	}
	return Entry{Cid: b.Cid, Tsize: tsize + uint64(b.Size())}, nil
}

// AddFile imports the content read from r. Content of at most one chunk is
// a single raw block.
func (i *Importer) AddFile(ctx context.Context, r io.Reader) (Entry, error) {
	params := helpers.DagBuilderParams{
		Dagserv:    &dagService{ctx: ctx, store: i.store},
		RawLeaves:  true,
		Maxlinks:   i.maxLinks,
		CidBuilder: merkledag.V1CidPrefix(),
	}
	db, err := params.New(chunker.NewSizeSplitter(&contextReader{ctx: ctx, r: r}, int64(i.chunkSize)))
	if err != nil {
		return Entry{}, err
	}
	nd, err := balanced.Layout(db)
	if err != nil {
		return Entry{}, err
	}

	tsize, err := nd.Size()
	if err != nil {
		return Entry{}, err
	}
	e := Entry{Cid: nd.Cid(), Tsize: tsize}
	switch n := nd.(type) {
	case *merkledag.RawNode:
		e.Size = uint64(len(n.RawData()))
	case *merkledag.ProtoNode:
		fsn, err := ft.FSNodeFromBytes(n.Data())
		if err != nil {
			return Entry{}, err
		}
		e.Size = fsn.FileSize()
	}
	return e, nil
}

// DecodeData decodes the UnixFS data of a dag-pb node.
func DecodeData(b dag.Block) (*ft.FSNode, []dag.Link, error) {
	links, data, err := dag.DecodeNode(b.Data)
	if err != nil {
		return nil, nil, err
	}
	n, err := ft.FSNodeFromBytes(data)
	if err != nil {
		return nil, nil, fmt.Errorf("unixfs data: %w", err)
	}
	return n, links, nil
}

// dagService puts the nodes of an import into the block store. The builder
// adds nodes without a context, the import context is used instead.
type dagService struct {
	ctx   context.Context
	store blockstore.Putter
}

var _ format.DAGService = (*dagService)(nil)

func (s *dagService) Add(_ context.Context, nd format.Node) error {
	return s.store.Put(s.ctx, dag.Block{Cid: nd.Cid(), Data: nd.RawData()})
}

func (s *dagService) AddMany(ctx context.Context, nds []format.Node) error {
	for _, nd := range nds {
		if err := s.Add(ctx, nd); err != nil {
			return err
		}
	}
	return nil
}

func (s *dagService) Get(_ context.Context, c cid.Cid) (format.Node, error) {
	return nil, format.ErrNotFound{Cid: c}
}

func (s *dagService) GetMany(context.Context, []cid.Cid) <-chan *format.NodeOption {
	ch := make(chan *format.NodeOption)
	close(ch)
	return ch
}

func (s *dagService) Remove(context.Context, cid.Cid) error { return nil }

func (s *dagService) RemoveMany(context.Context, []cid.Cid) error { return nil }

// contextReader stops reading once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *contextReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}
