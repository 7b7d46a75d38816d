package snapshot

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/jerry-samek/tick-frame-space-sub008/grid"
	"github.com/jerry-samek/tick-frame-space-sub008/internal/sim"
	"github.com/jerry-samek/tick-frame-space-sub008/scalar"
)

// The uncompressed layout is a fixed big-endian header followed by one
// varint record per entity:
//
//	magic "TFSS" | version u32 | tick u64 | count u32 | dim u32 | 8 reserved
//	per entity: position[dim], energy, generation, momentum cost,
//	            momentum[dim], birth tick
//
// A gzip layer may wrap the whole stream; Decode sniffs the two gzip magic
// bytes, so readers never need to know how a snapshot was written.
const (
	headerSize = 4 + 4 + 8 + 4 + 4 + 8

	formatMagic   = "TFSS"
	formatVersion = 1
)

var gzipMagic = [2]byte{0x1f, 0x8b}

// EncodedSize returns the exact uncompressed byte count Encode produces.
// Callers use it to pre-size buffers or to decide whether compressing a
// snapshot is worth it.
func EncodedSize(snap Snapshot) int {
	size := headerSize
	for _, e := range snap.Entities {
		size += vectorLen(e.Pos)
		size += scalar.VarintLen(e.Energy)
		size += scalar.VarintLen(e.Generation)
		size += scalar.VarintLen(e.Momentum.Cost)
		size += vectorLen(e.Momentum.Dir)
		size += scalar.VarintLen(scalar.FromInt64(int64(e.BirthTick)))
	}
	return size
}

func vectorLen(v grid.Vector) int {
	size := 0
	for i := 0; i < v.Dim(); i++ {
		size += scalar.VarintLen(v.Component(i))
	}
	return size
}

// Encode writes snap to w, gzip-compressed when compress is set.
func Encode(w io.Writer, snap Snapshot, compress bool) error {
	if err := validate(snap); err != nil {
		return err
	}
	payload := appendSnapshot(make([]byte, 0, EncodedSize(snap)), snap)
	if !compress {
		_, err := w.Write(payload)
		return err
	}
	gz := gzip.NewWriter(w)
	if _, err := gz.Write(payload); err != nil {
		gz.Close()
		return err
	}
	return gz.Close()
}

func validate(snap Snapshot) error {
	if snap.Dim < 1 && len(snap.Entities) > 0 {
		return fmt.Errorf("snapshot: dimension %d: %w", snap.Dim, grid.ErrZeroDimension)
	}
	if uint64(len(snap.Entities)) > math.MaxUint32 {
		return fmt.Errorf("snapshot: %d entities exceed the format limit", len(snap.Entities))
	}
	for _, e := range snap.Entities {
		if e.Pos.Dim() != snap.Dim || e.Momentum.Dir.Dim() != snap.Dim {
			return fmt.Errorf("snapshot: entity %d mixes dimensions: %w", e.ID, grid.ErrDimensionMismatch)
		}
	}
	return nil
}

func appendSnapshot(dst []byte, snap Snapshot) []byte {
	dst = append(dst, formatMagic...)
	dst = binary.BigEndian.AppendUint32(dst, formatVersion)
	dst = binary.BigEndian.AppendUint64(dst, snap.Tick)
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(snap.Entities)))
	dst = binary.BigEndian.AppendUint32(dst, uint32(snap.Dim))
	dst = append(dst, 0, 0, 0, 0, 0, 0, 0, 0)
	for _, e := range snap.Entities {
		dst = appendVector(dst, e.Pos)
		dst = scalar.AppendVarint(dst, e.Energy)
		dst = scalar.AppendVarint(dst, e.Generation)
		dst = scalar.AppendVarint(dst, e.Momentum.Cost)
		dst = appendVector(dst, e.Momentum.Dir)
		dst = scalar.AppendVarint(dst, scalar.FromInt64(int64(e.BirthTick)))
	}
	return dst
}

func appendVector(dst []byte, v grid.Vector) []byte {
	for i := 0; i < v.Dim(); i++ {
		dst = scalar.AppendVarint(dst, v.Component(i))
	}
	return dst
}

// Decode reads one snapshot from r, unwrapping a gzip layer when present.
func Decode(r io.Reader) (Snapshot, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(2)
	if err != nil {
		return Snapshot{}, &FormatError{Detail: "reading stream head", Err: err}
	}
	var src io.Reader = br
	if head[0] == gzipMagic[0] && head[1] == gzipMagic[1] {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return Snapshot{}, &FormatError{Detail: "opening gzip layer", Err: err}
		}
		defer gz.Close()
		src = gz
	}
	return decodePayload(bufio.NewReader(src))
}

func decodePayload(r *bufio.Reader) (Snapshot, error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return Snapshot{}, &FormatError{Detail: "truncated header", Err: err}
	}
	if string(header[:4]) != formatMagic {
		return Snapshot{}, &FormatError{
			Detail:   "magic tag",
			Expected: formatMagic,
			Actual:   fmt.Sprintf("%q", header[:4]),
		}
	}
	if version := binary.BigEndian.Uint32(header[4:8]); version != formatVersion {
		return Snapshot{}, &FormatError{
			Detail:   "format version",
			Expected: strconv.Itoa(formatVersion),
			Actual:   strconv.FormatUint(uint64(version), 10),
		}
	}
	tick := binary.BigEndian.Uint64(header[8:16])
	count := binary.BigEndian.Uint32(header[16:20])
	dim := binary.BigEndian.Uint32(header[20:24])
	if count > 0 && dim == 0 {
		return Snapshot{}, &FormatError{Detail: "zero dimension with entities present"}
	}

	snap := Snapshot{Tick: tick, Dim: int(dim)}
	if count == 0 {
		return snap, nil
	}
	// Cap the preallocation so a corrupt count cannot balloon memory; the
	// slice grows normally past the cap.
	prealloc := count
	if prealloc > 4096 {
		prealloc = 4096
	}
	snap.Entities = make([]sim.EntityState, 0, prealloc)
	for i := uint32(0); i < count; i++ {
		e, err := readEntity(r, int(dim))
		if err != nil {
			return Snapshot{}, &FormatError{
				Detail: fmt.Sprintf("record %d of %d", i+1, count),
				Err:    err,
			}
		}
		e.ID = sim.EntityID(i + 1)
		snap.Entities = append(snap.Entities, e)
	}
	return snap, nil
}

func readEntity(r *bufio.Reader, dim int) (sim.EntityState, error) {
	pos, err := readVector(r, dim)
	if err != nil {
		return sim.EntityState{}, err
	}
	energy, err := scalar.ReadVarint(r)
	if err != nil {
		return sim.EntityState{}, err
	}
	generation, err := scalar.ReadVarint(r)
	if err != nil {
		return sim.EntityState{}, err
	}
	cost, err := scalar.ReadVarint(r)
	if err != nil {
		return sim.EntityState{}, err
	}
	dir, err := readVector(r, dim)
	if err != nil {
		return sim.EntityState{}, err
	}
	birth, err := scalar.ReadVarint(r)
	if err != nil {
		return sim.EntityState{}, err
	}
	birthTick, ok := birth.Int64()
	if !ok || birthTick < 0 {
		return sim.EntityState{}, fmt.Errorf("birth tick %s out of range", birth)
	}
	return sim.EntityState{
		BirthTick:  uint64(birthTick),
		Pos:        pos,
		Energy:     energy,
		Generation: generation,
		Momentum:   sim.Momentum{Cost: cost, Dir: dir},
	}, nil
}

func readVector(r *bufio.Reader, dim int) (grid.Vector, error) {
	comps := make([]scalar.Scalar, dim)
	for i := range comps {
		c, err := scalar.ReadVarint(r)
		if err != nil {
			return grid.Vector{}, err
		}
		comps[i] = c
	}
	return grid.New(comps...)
}
