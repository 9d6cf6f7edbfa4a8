package fast

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// Memory is merkleized in 32 byte leaves of 16 big-endian words.
// Pages are allocated lazily; an absent page reads as zeroes.
const (
	PageAddrSize = 9
	PageSize     = 1 << PageAddrSize
	PageAddrMask = PageSize - 1
	PageCount    = 1 << (16 - PageAddrSize)

	LeafWords     = 16
	leavesPerPage = PageSize / LeafWords
	pageDepth     = 5
	upperDepth    = 16 - PageAddrSize

	MemoryDepth  = pageDepth + upperDepth + 4
	MemProofSize = (pageDepth + upperDepth + 1) * 32
)

func HashPair(left, right [32]byte) [32]byte {
	return crypto.Keccak256Hash(left[:], right[:])
}

var zeroHashes = func() [16][32]byte {
	var out [16][32]byte
	for i := 1; i < len(out); i++ {
		out[i] = HashPair(out[i-1], out[i-1])
	}
	return out
}()

type Page [PageSize]uint16

func (p *Page) MarshalText() ([]byte, error) {
	var buf [PageSize * 2]byte
	for i, w := range p {
		binary.BigEndian.PutUint16(buf[i*2:], w)
	}
	return []byte(hexutil.Encode(buf[:])), nil
}

func (p *Page) UnmarshalText(text []byte) error {
	dat, err := hexutil.Decode(string(text))
	if err != nil {
		return err
	}
	if len(dat) != PageSize*2 {
		return fmt.Errorf("page has %d bytes, expected %d", len(dat), PageSize*2)
	}
	for i := range p {
		p[i] = binary.BigEndian.Uint16(dat[i*2:])
	}
	return nil
}

// CachedPage keeps the inner nodes of a page subtree, indexed by generalized
// index (1 is the page root). Leaves are read from Data directly.
type CachedPage struct {
	Data  *Page
	Cache [leavesPerPage][32]byte
	Ok    [leavesPerPage]bool
}

func (p *CachedPage) leaf(i uint64) (out [32]byte) {
	for j := uint64(0); j < LeafWords; j++ {
		binary.BigEndian.PutUint16(out[j*2:], p.Data[i*LeafWords+j])
	}
	return out
}

func (p *CachedPage) Invalidate(pageAddr uint16) {
	for g := (leavesPerPage + uint64(pageAddr&PageAddrMask)/LeafWords) >> 1; g > 0; g >>= 1 {
		p.Ok[g] = false
	}
}

func (p *CachedPage) InvalidateFull() {
	p.Ok = [leavesPerPage]bool{}
}

func (p *CachedPage) MerkleizeSubtree(gindex uint64) [32]byte {
	if gindex >= leavesPerPage {
		return p.leaf(gindex - leavesPerPage)
	}
	if p.Ok[gindex] {
		return p.Cache[gindex]
	}
	h := HashPair(p.MerkleizeSubtree(gindex<<1), p.MerkleizeSubtree(gindex<<1|1))
	p.Cache[gindex] = h
	p.Ok[gindex] = true
	return h
}

func (p *CachedPage) MerkleRoot() [32]byte {
	return p.MerkleizeSubtree(1)
}

// Memory is the 64K-word address space.
type Memory struct {
	pages map[uint16]*CachedPage
}

func NewMemory() *Memory {
	return &Memory{pages: make(map[uint16]*CachedPage)}
}

func (m *Memory) PageCount() int {
	return len(m.pages)
}

func (m *Memory) ForEachPage(fn func(pageIndex uint16, page *Page) error) error {
	for pageIndex, p := range m.pages {
		if err := fn(pageIndex, p.Data); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) AllocPage(pageIndex uint16) *CachedPage {
	p := &CachedPage{Data: new(Page)}
	m.pages[pageIndex] = p
	return p
}

func (m *Memory) GetWord(addr uint16) uint16 {
	p, ok := m.pages[addr>>PageAddrSize]
	if !ok {
		return 0
	}
	return p.Data[addr&PageAddrMask]
}

func (m *Memory) SetWord(addr uint16, v uint16) {
	pageIndex := addr >> PageAddrSize
	p, ok := m.pages[pageIndex]
	if !ok {
		if v == 0 {
			return
		}
		p = m.AllocPage(pageIndex)
	}
	p.Invalidate(addr)
	p.Data[addr&PageAddrMask] = v
}

// SetWords writes consecutive words starting at addr, wrapping at the top of the address space.
func (m *Memory) SetWords(addr uint16, words []uint16) {
	for _, w := range words {
		m.SetWord(addr, w)
		addr++
	}
}

func (m *Memory) pageRoots() [][32]byte {
	level := make([][32]byte, PageCount)
	for i := range level {
		if p, ok := m.pages[uint16(i)]; ok {
			level[i] = p.MerkleRoot()
		} else {
			level[i] = zeroHashes[pageDepth]
		}
	}
	return level
}

func (m *Memory) MerkleRoot() [32]byte {
	level := m.pageRoots()
	for len(level) > 1 {
		next := make([][32]byte, len(level)/2)
		for i := range next {
			next[i] = HashPair(level[2*i], level[2*i+1])
		}
		level = next
	}
	return level[0]
}

// MerkleProof returns the leaf holding addr followed by the sibling path to the root, bottom-up.
func (m *Memory) MerkleProof(addr uint16) (out [MemProofSize]byte) {
	pageIndex := addr >> PageAddrSize
	leafIndex := uint64(addr&PageAddrMask) / LeafWords
	i := 0
	put := func(node [32]byte) {
		copy(out[i*32:], node[:])
		i++
	}
	if p, ok := m.pages[pageIndex]; ok {
		put(p.leaf(leafIndex))
		for g := leavesPerPage + leafIndex; g > 1; g >>= 1 {
			put(p.MerkleizeSubtree(g ^ 1))
		}
	} else {
		put(zeroHashes[0])
		for d := 0; d < pageDepth; d++ {
			put(zeroHashes[d])
		}
	}
	level := m.pageRoots()
	for idx := int(pageIndex); len(level) > 1; idx >>= 1 {
		put(level[idx^1])
		next := make([][32]byte, len(level)/2)
		for j := range next {
			next[j] = HashPair(level[2*j], level[2*j+1])
		}
		level = next
	}
	return out
}

// Copy returns a deep copy of the memory.
func (m *Memory) Copy() *Memory {
	out := NewMemory()
	for k, p := range m.pages {
		data := *p.Data
		out.pages[k] = &CachedPage{Data: &data}
	}
	return out
}

func (m *Memory) Usage() string {
	return fmt.Sprintf("%d/%d pages, %d words", len(m.pages), PageCount, len(m.pages)*PageSize)
}

type pageEntry struct {
	Index uint16 `json:"index"`
	Data  *Page  `json:"data"`
}

func (m *Memory) MarshalJSON() ([]byte, error) {
	pages := make([]pageEntry, 0, len(m.pages))
	for k, p := range m.pages {
		pages = append(pages, pageEntry{Index: k, Data: p.Data})
	}
	sort.Slice(pages, func(i, j int) bool {
		return pages[i].Index < pages[j].Index
	})
	return json.Marshal(pages)
}

func (m *Memory) UnmarshalJSON(data []byte) error {
	var pages []pageEntry
	if err := json.Unmarshal(data, &pages); err != nil {
		return err
	}
	m.pages = make(map[uint16]*CachedPage)
	for i, p := range pages {
		if p.Index >= PageCount {
			return fmt.Errorf("page index %d out of range, entry %d", p.Index, i)
		}
		if _, ok := m.pages[p.Index]; ok {
			return fmt.Errorf("cannot load duplicate page, entry %d, page index %d", i, p.Index)
		}
		if p.Data == nil {
			return fmt.Errorf("page %d has no data", p.Index)
		}
		m.AllocPage(p.Index).Data = p.Data
	}
	return nil
}
