package store

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/gridcube/gridcube/internal/raster"
)

// bytesPerValue is the width of one stored value (<f4).
const bytesPerValue = 4

// Array is a writer handle on one shared chunked array. Goroutines sharing
// one handle may write concurrently whenever their block regions are
// disjoint: writes that only partially cover a chunk are serialized per chunk
// key, so two tasks patching different regions of the same chunk never lose
// each other's pixels. Separate handles (other processes) must additionally
// keep their regions chunk-aligned, since the read-patch-write cycle cannot
// be locked across processes. Each chunk write is atomic at the Store layer
// and rewriting a region with the same data is a no-op in effect, which is
// what makes resumed partial runs safe.
type Array struct {
	store Store
	name  string
	meta  ArrayMeta

	mu      sync.Mutex
	chunkMu map[string]*sync.Mutex
}

// Create initializes the array schema in the store. It is the one-time setup
// step that must complete before any task writes. Re-creating an existing
// array overwrites its metadata but not its chunks.
func Create(st Store, name string, meta ArrayMeta) (*Array, error) {
	validateErr := meta.Validate()
	if validateErr != nil {
		return nil, validateErr
	}

	data, err := meta.encode()
	if err != nil {
		return nil, fmt.Errorf("encoding array metadata: %w", err)
	}

	putErr := st.Put(name+"/"+metaKey, data)
	if putErr != nil {
		return nil, fmt.Errorf("writing array metadata: %w", putErr)
	}

	return &Array{store: st, name: name, meta: meta, chunkMu: make(map[string]*sync.Mutex)}, nil
}

// Open reads an existing array's metadata from the store.
func Open(st Store, name string) (*Array, error) {
	data, err := st.Get(name + "/" + metaKey)
	if err != nil {
		return nil, fmt.Errorf("array %q is not initialized: %w", name, err)
	}

	meta, err := decodeMeta(data)
	if err != nil {
		return nil, err
	}

	validateErr := meta.Validate()
	if validateErr != nil {
		return nil, validateErr
	}

	return &Array{store: st, name: name, meta: meta, chunkMu: make(map[string]*sync.Mutex)}, nil
}

// Meta returns the array metadata.
func (a *Array) Meta() ArrayMeta { return a.meta }

// Name returns the array's variable name within the store.
func (a *Array) Name() string { return a.name }

// WriteBlock writes a composited block at time index t and pixel offset
// (y, x). It returns the number of compressed bytes stored.
//
// Chunks fully covered by the block are written directly; chunks the block
// only partially covers are read, patched, and rewritten. Writing the same
// (offset, block) twice leaves the store in the same state as writing it
// once.
func (a *Array) WriteBlock(t, y, x int, block *raster.Block) (int64, error) {
	timeSteps, height, width, bands := a.meta.Shape[0], a.meta.Shape[1], a.meta.Shape[2], a.meta.Shape[3]

	if t < 0 || t >= timeSteps {
		return 0, fmt.Errorf("time index %d outside array extent %d", t, timeSteps)
	}

	if len(block.Bands) != bands {
		return 0, fmt.Errorf("block has %d bands, array stores %d", len(block.Bands), bands)
	}

	if y < 0 || x < 0 || y+block.Height > height || x+block.Width > width {
		return 0, fmt.Errorf("block [%d:%d, %d:%d] outside array extent %dx%d",
			y, y+block.Height, x, x+block.Width, height, width)
	}

	chunkH, chunkW := a.meta.Chunks[1], a.meta.Chunks[2]

	var written int64

	for cy := y / chunkH; cy <= (y+block.Height-1)/chunkH; cy++ {
		for cx := x / chunkW; cx <= (x+block.Width-1)/chunkW; cx++ {
			n, err := a.writeChunk(t, cy, cx, y, x, block)
			if err != nil {
				return written, err
			}

			written += n
		}
	}

	return written, nil
}

// writeChunk patches one chunk with the overlapping part of the block and
// stores it. Partial covers read, patch, and rewrite the chunk, so the whole
// cycle holds the chunk's lock to keep concurrent disjoint-region writers
// from erasing each other.
func (a *Array) writeChunk(t, cy, cx, blockY, blockX int, block *raster.Block) (int64, error) {
	chunkH, chunkW, bands := a.meta.Chunks[1], a.meta.Chunks[2], a.meta.Chunks[3]

	key := a.chunkStoreKey(t, cy, cx)

	lock := a.chunkLock(key)
	lock.Lock()
	defer lock.Unlock()

	// Overlap of the chunk's pixel rectangle with the block's.
	top := max(cy*chunkH, blockY)
	bottom := min((cy+1)*chunkH, blockY+block.Height)
	left := max(cx*chunkW, blockX)
	right := min((cx+1)*chunkW, blockX+block.Width)

	fullCover := top == cy*chunkH && bottom == (cy+1)*chunkH &&
		left == cx*chunkW && right == (cx+1)*chunkW

	var values []float32

	if fullCover {
		values = make([]float32, a.meta.ChunkElems())
	} else {
		existing, err := a.readChunk(t, cy, cx)
		if err != nil {
			return 0, err
		}

		values = existing
	}

	for row := top; row < bottom; row++ {
		for col := left; col < right; col++ {
			for band := 0; band < bands; band++ {
				idx := ((row-cy*chunkH)*chunkW+(col-cx*chunkW))*bands + band
				values[idx] = block.At(band, row-blockY, col-blockX)
			}
		}
	}

	raw := make([]byte, len(values)*bytesPerValue)
	for i, v := range values {
		binary.LittleEndian.PutUint32(raw[i*bytesPerValue:], math.Float32bits(v))
	}

	compressed, err := compressChunk(raw)
	if err != nil {
		return 0, err
	}

	putErr := a.store.Put(key, compressed)
	if putErr != nil {
		return 0, fmt.Errorf("writing chunk %d.%d.%d: %w", t, cy, cx, putErr)
	}

	return int64(len(compressed)), nil
}

// chunkLock returns the mutex guarding one chunk key, creating it on first
// use.
func (a *Array) chunkLock(key string) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()

	lock, ok := a.chunkMu[key]
	if !ok {
		lock = &sync.Mutex{}
		a.chunkMu[key] = lock
	}

	return lock
}

// readChunk loads and decodes one chunk, or returns a fill-value chunk when
// it has never been written.
func (a *Array) readChunk(t, cy, cx int) ([]float32, error) {
	values := make([]float32, a.meta.ChunkElems())

	data, err := a.store.Get(a.chunkStoreKey(t, cy, cx))
	if errors.Is(err, ErrNotFound) {
		nan := float32(math.NaN())
		for i := range values {
			values[i] = nan
		}

		return values, nil
	}

	if err != nil {
		return nil, err
	}

	raw, err := decompressChunk(data)
	if err != nil {
		return nil, fmt.Errorf("reading chunk %d.%d.%d: %w", t, cy, cx, err)
	}

	if len(raw) != len(values)*bytesPerValue {
		return nil, fmt.Errorf("chunk %d.%d.%d has %d bytes, expected %d", t, cy, cx, len(raw), len(values)*bytesPerValue)
	}

	for i := range values {
		values[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*bytesPerValue:]))
	}

	return values, nil
}

// At reads a single value, mainly for verification and tests. Unwritten
// regions read as NaN.
func (a *Array) At(t, y, x, band int) (float32, error) {
	chunkH, chunkW, bands := a.meta.Chunks[1], a.meta.Chunks[2], a.meta.Chunks[3]

	values, err := a.readChunk(t, y/chunkH, x/chunkW)
	if err != nil {
		return 0, err
	}

	idx := ((y%chunkH)*chunkW+(x%chunkW))*bands + band

	return values[idx], nil
}

func (a *Array) chunkStoreKey(t, cy, cx int) string {
	return a.name + "/" + ChunkKey([]int{t, cy, cx, 0}, a.meta.DimensionSeparator)
}
