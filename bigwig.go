/* Copyright (C) 2021 Philipp Benner
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 */

package scatrack

/* -------------------------------------------------------------------------- */

import "bytes"
import "compress/zlib"
import "encoding/binary"
import "fmt"
import "io"
import "io/ioutil"
import "math"
import "sort"

/* -------------------------------------------------------------------------- */

const BIGWIG_MAGIC  = 0x888FFC26
const CIRTREE_MAGIC = 0x78ca8c91
const     IDX_MAGIC = 0x2468ace0

const bbiTypeBedGraph = 1

const bbiItemsPerSlot = 1024
const bbiBlockSize    = 256

/* -------------------------------------------------------------------------- */

func writeAt(writer io.WriteSeeker, offset int64, data interface{}) error {
  currentPosition, err := writer.Seek(0, io.SeekCurrent)
  if err != nil {
    return err
  }
  if _, err := writer.Seek(offset, io.SeekStart); err != nil {
    return err
  }
  if err := binary.Write(writer, binary.LittleEndian, data); err != nil {
    return err
  }
  if _, err := writer.Seek(currentPosition, io.SeekStart); err != nil {
    return err
  }
  return nil
}

func uncompressSlice(data []byte) ([]byte, error) {
  b := bytes.NewReader(data)
  z, err := zlib.NewReader(b)
  if err != nil {
    return nil, err
  }
  defer z.Close()

  return ioutil.ReadAll(z)
}

func compressSlice(data []byte) ([]byte, error) {
  var b bytes.Buffer
  z, err := zlib.NewWriterLevel(&b, zlib.BestCompression)
  if err != nil {
    return nil, err
  }
  if _, err := z.Write(data); err != nil {
    return nil, err
  }
  if err := z.Close(); err != nil {
    return nil, err
  }
  return b.Bytes(), nil
}

/* file header
 * -------------------------------------------------------------------------- */

type bbiHeader struct {
  Magic             uint32
  Version           uint16
  ZoomLevels        uint16
  CtOffset          uint64
  DataOffset        uint64
  IndexOffset       uint64
  FieldCount        uint16
  DefinedFieldCount uint16
  SqlOffset         uint64
  SummaryOffset     uint64
  BufSize           uint32
  ExtensionOffset   uint64

  NBlocks           uint64
}

func newBbiHeader() bbiHeader {
  header := bbiHeader{}
  header.Magic   = BIGWIG_MAGIC
  header.Version = 4
  return header
}

func (header *bbiHeader) Read(reader io.ReadSeeker) error {
  if _, err := reader.Seek(0, io.SeekStart); err != nil {
    return err
  }
  if err := binary.Read(reader, binary.LittleEndian, &header.Magic); err != nil {
    return err
  }
  if header.Magic != BIGWIG_MAGIC {
    return fmt.Errorf("not a bigWig file")
  }
  for _, ptr := range []interface{}{
    &header.Version,
    &header.ZoomLevels,
    &header.CtOffset,
    &header.DataOffset,
    &header.IndexOffset,
    &header.FieldCount,
    &header.DefinedFieldCount,
    &header.SqlOffset,
    &header.SummaryOffset,
    &header.BufSize,
    &header.ExtensionOffset } {
    if err := binary.Read(reader, binary.LittleEndian, ptr); err != nil {
      return err
    }
  }
  // number of blocks precedes the data section
  if _, err := reader.Seek(int64(header.DataOffset), io.SeekStart); err != nil {
    return err
  }
  return binary.Read(reader, binary.LittleEndian, &header.NBlocks)
}

func (header *bbiHeader) Write(writer io.WriteSeeker) error {
  if _, err := writer.Seek(0, io.SeekStart); err != nil {
    return err
  }
  for _, value := range []interface{}{
    header.Magic,
    header.Version,
    header.ZoomLevels,
    header.CtOffset,
    header.DataOffset,
    header.IndexOffset,
    header.FieldCount,
    header.DefinedFieldCount,
    header.SqlOffset,
    header.SummaryOffset,
    header.BufSize,
    header.ExtensionOffset } {
    if err := binary.Write(writer, binary.LittleEndian, value); err != nil {
      return err
    }
  }
  return nil
}

/* total summary
 * -------------------------------------------------------------------------- */

type bbiSummary struct {
  ValidCount uint64
  Min        float64
  Max        float64
  Sum        float64
  SumSquares float64
}

func (summary *bbiSummary) add(record BedGraphRecord) {
  length := float64(record.To - record.From)
  if summary.ValidCount == 0 {
    summary.Min = record.Value
    summary.Max = record.Value
  } else {
    summary.Min = math.Min(summary.Min, record.Value)
    summary.Max = math.Max(summary.Max, record.Value)
  }
  summary.ValidCount += uint64(record.To - record.From)
  summary.Sum        += record.Value * length
  summary.SumSquares += record.Value * record.Value * length
}

func (summary *bbiSummary) Read(reader io.ReadSeeker, offset uint64) error {
  if _, err := reader.Seek(int64(offset), io.SeekStart); err != nil {
    return err
  }
  return binary.Read(reader, binary.LittleEndian, summary)
}

func (summary *bbiSummary) Write(writer io.WriteSeeker, offset uint64) error {
  return writeAt(writer, int64(offset), summary)
}

/* chromosome b+ tree
 * -------------------------------------------------------------------------- */

type chromTree struct {
  KeySize  uint32
  Names  []string
  Sizes  []uint32
}

func newChromTree(genome Genome) chromTree {
  tree := chromTree{}
  tree.Names = append([]string{}, genome.Seqnames...)
  sort.Strings(tree.Names)
  tree.Sizes = make([]uint32, len(tree.Names))
  for i, name := range tree.Names {
    if length, err := genome.SeqLength(name); err == nil {
      tree.Sizes[i] = uint32(length)
    }
    if len(name) > int(tree.KeySize) {
      tree.KeySize = uint32(len(name))
    }
  }
  return tree
}

// chromosome id of the given name, ids follow the lexicographic
// order of the chromosome names
func (tree chromTree) Id(name string) (uint32, bool) {
  i := sort.SearchStrings(tree.Names, name)
  if i == len(tree.Names) || tree.Names[i] != name {
    return 0, false
  }
  return uint32(i), true
}

func (tree chromTree) Genome() Genome {
  genome := Genome{}
  for i := 0; i < len(tree.Names); i++ {
    genome.Seqnames = append(genome.Seqnames, tree.Names[i])
    genome.Lengths  = append(genome.Lengths,  int(tree.Sizes[i]))
  }
  return genome
}

func (tree chromTree) writeLeaf(writer io.WriteSeeker, from, to int) error {
  if err := binary.Write(writer, binary.LittleEndian, uint8(1)); err != nil {
    return err
  }
  if err := binary.Write(writer, binary.LittleEndian, uint8(0)); err != nil {
    return err
  }
  if err := binary.Write(writer, binary.LittleEndian, uint16(to-from)); err != nil {
    return err
  }
  for i := from; i < to; i++ {
    key := make([]byte, tree.KeySize)
    copy(key, tree.Names[i])
    if err := binary.Write(writer, binary.LittleEndian, key); err != nil {
      return err
    }
    if err := binary.Write(writer, binary.LittleEndian, uint32(i)); err != nil {
      return err
    }
    if err := binary.Write(writer, binary.LittleEndian, tree.Sizes[i]); err != nil {
      return err
    }
  }
  return nil
}

func (tree chromTree) Write(writer io.WriteSeeker) error {
  for _, value := range []interface{}{
    uint32(CIRTREE_MAGIC),
    uint32(bbiBlockSize),
    tree.KeySize,
    uint32(8),
    uint64(len(tree.Names)),
    uint64(0) } {
    if err := binary.Write(writer, binary.LittleEndian, value); err != nil {
      return err
    }
  }
  if len(tree.Names) <= bbiBlockSize {
    return tree.writeLeaf(writer, 0, len(tree.Names))
  }
  // one index vertex followed by its leaves
  n := divIntUp(len(tree.Names), bbiBlockSize)
  if err := binary.Write(writer, binary.LittleEndian, uint8(0)); err != nil {
    return err
  }
  if err := binary.Write(writer, binary.LittleEndian, uint8(0)); err != nil {
    return err
  }
  if err := binary.Write(writer, binary.LittleEndian, uint16(n)); err != nil {
    return err
  }
  offsets := make([]int64, n)
  for i := 0; i < n; i++ {
    key := make([]byte, tree.KeySize)
    copy(key, tree.Names[i*bbiBlockSize])
    if err := binary.Write(writer, binary.LittleEndian, key); err != nil {
      return err
    }
    offsets[i], _ = writer.Seek(0, io.SeekCurrent)
    if err := binary.Write(writer, binary.LittleEndian, uint64(0)); err != nil {
      return err
    }
  }
  for i := 0; i < n; i++ {
    offset, _ := writer.Seek(0, io.SeekCurrent)
    if err := writeAt(writer, offsets[i], uint64(offset)); err != nil {
      return err
    }
    if err := tree.writeLeaf(writer, i*bbiBlockSize, iMin((i+1)*bbiBlockSize, len(tree.Names))); err != nil {
      return err
    }
  }
  return nil
}

func (tree *chromTree) readVertex(reader io.ReadSeeker) error {
  var isLeaf  uint8
  var padding uint8
  var nVals   uint16

  if err := binary.Read(reader, binary.LittleEndian, &isLeaf); err != nil {
    return err
  }
  if err := binary.Read(reader, binary.LittleEndian, &padding); err != nil {
    return err
  }
  if err := binary.Read(reader, binary.LittleEndian, &nVals); err != nil {
    return err
  }
  if isLeaf != 0 {
    for i := 0; i < int(nVals); i++ {
      key := make([]byte, tree.KeySize)
      var chromId uint32
      var size    uint32
      if err := binary.Read(reader, binary.LittleEndian, &key); err != nil {
        return err
      }
      if err := binary.Read(reader, binary.LittleEndian, &chromId); err != nil {
        return err
      }
      if err := binary.Read(reader, binary.LittleEndian, &size); err != nil {
        return err
      }
      if int(chromId) >= len(tree.Names) {
        return fmt.Errorf("chromosome tree contains invalid id `%d'", chromId)
      }
      tree.Names[chromId] = string(bytes.TrimRight(key, "\x00"))
      tree.Sizes[chromId] = size
    }
    return nil
  }
  for i := 0; i < int(nVals); i++ {
    key := make([]byte, tree.KeySize)
    var position uint64
    if err := binary.Read(reader, binary.LittleEndian, &key); err != nil {
      return err
    }
    if err := binary.Read(reader, binary.LittleEndian, &position); err != nil {
      return err
    }
    currentPosition, _ := reader.Seek(0, io.SeekCurrent)
    if _, err := reader.Seek(int64(position), io.SeekStart); err != nil {
      return err
    }
    if err := tree.readVertex(reader); err != nil {
      return err
    }
    if _, err := reader.Seek(currentPosition, io.SeekStart); err != nil {
      return err
    }
  }
  return nil
}

func (tree *chromTree) Read(reader io.ReadSeeker, offset uint64) error {
  var magic     uint32
  var blockSize uint32
  var valSize   uint32
  var itemCount uint64
  var padding   uint64

  if _, err := reader.Seek(int64(offset), io.SeekStart); err != nil {
    return err
  }
  if err := binary.Read(reader, binary.LittleEndian, &magic); err != nil {
    return err
  }
  if magic != CIRTREE_MAGIC {
    return fmt.Errorf("invalid chromosome tree")
  }
  for _, ptr := range []interface{}{&blockSize, &tree.KeySize, &valSize, &itemCount, &padding} {
    if err := binary.Read(reader, binary.LittleEndian, ptr); err != nil {
      return err
    }
  }
  tree.Names = make([]string, itemCount)
  tree.Sizes = make([]uint32, itemCount)
  return tree.readVertex(reader)
}

/* data sections
 * -------------------------------------------------------------------------- */

type bbiDataHeader struct {
  ChromId   uint32
  Start     uint32
  End       uint32
  Step      uint32
  Span      uint32
  Type      byte
  Reserved  byte
  ItemCount uint16
}

// a contiguous run of records from a single chromosome, stored as one
// compressed block
type bbiBlock struct {
  ChromId uint32
  Start   uint32
  End     uint32
  Offset  uint64
  Size    uint64
}

func encodeBlock(chromId uint32, records []BedGraphRecord) []byte {
  header := bbiDataHeader{}
  header.ChromId   = chromId
  header.Start     = uint32(records[0].From)
  header.End       = uint32(records[len(records)-1].To)
  header.Type      = bbiTypeBedGraph
  header.ItemCount = uint16(len(records))

  buffer := new(bytes.Buffer)
  binary.Write(buffer, binary.LittleEndian, header)
  for _, record := range records {
    binary.Write(buffer, binary.LittleEndian, uint32(record.From))
    binary.Write(buffer, binary.LittleEndian, uint32(record.To))
    binary.Write(buffer, binary.LittleEndian, float32(record.Value))
  }
  return buffer.Bytes()
}

func decodeBlock(buffer []byte) (bbiDataHeader, []BedGraphRecord, error) {
  header := bbiDataHeader{}
  reader := bytes.NewReader(buffer)
  if err := binary.Read(reader, binary.LittleEndian, &header); err != nil {
    return header, nil, err
  }
  if header.Type != bbiTypeBedGraph {
    return header, nil, fmt.Errorf("unsupported data block type `%d'", header.Type)
  }
  records := make([]BedGraphRecord, header.ItemCount)
  for i := 0; i < int(header.ItemCount); i++ {
    var from  uint32
    var to    uint32
    var value float32
    if err := binary.Read(reader, binary.LittleEndian, &from); err != nil {
      return header, nil, err
    }
    if err := binary.Read(reader, binary.LittleEndian, &to); err != nil {
      return header, nil, err
    }
    if err := binary.Read(reader, binary.LittleEndian, &value); err != nil {
      return header, nil, err
    }
    records[i].From  = int(from)
    records[i].To    = int(to)
    records[i].Value = float64(value)
  }
  return header, records, nil
}

/* r-tree index
 * -------------------------------------------------------------------------- */

func writeIndexVertices(writer io.WriteSeeker, blocks []bbiBlock, level int) error {
  // capacity of a subtree one level down
  m := 1
  for i := 1; i < level; i++ {
    m *= bbiBlockSize
  }
  n := divIntUp(len(blocks), m)

  if level == 1 {
    // leaf vertex
    if err := binary.Write(writer, binary.LittleEndian, uint8(1)); err != nil {
      return err
    }
    if err := binary.Write(writer, binary.LittleEndian, uint8(0)); err != nil {
      return err
    }
    if err := binary.Write(writer, binary.LittleEndian, uint16(len(blocks))); err != nil {
      return err
    }
    for _, block := range blocks {
      for _, value := range []interface{}{
        block.ChromId, block.Start, block.ChromId, block.End, block.Offset, block.Size } {
        if err := binary.Write(writer, binary.LittleEndian, value); err != nil {
          return err
        }
      }
    }
    return nil
  }
  if err := binary.Write(writer, binary.LittleEndian, uint8(0)); err != nil {
    return err
  }
  if err := binary.Write(writer, binary.LittleEndian, uint8(0)); err != nil {
    return err
  }
  if err := binary.Write(writer, binary.LittleEndian, uint16(n)); err != nil {
    return err
  }
  offsets := make([]int64, n)
  for i := 0; i < n; i++ {
    group := blocks[i*m : iMin((i+1)*m, len(blocks))]
    for _, value := range []interface{}{
      group[0].ChromId, group[0].Start, group[len(group)-1].ChromId, group[len(group)-1].End } {
      if err := binary.Write(writer, binary.LittleEndian, value); err != nil {
        return err
      }
    }
    offsets[i], _ = writer.Seek(0, io.SeekCurrent)
    if err := binary.Write(writer, binary.LittleEndian, uint64(0)); err != nil {
      return err
    }
  }
  for i := 0; i < n; i++ {
    offset, _ := writer.Seek(0, io.SeekCurrent)
    if err := writeAt(writer, offsets[i], uint64(offset)); err != nil {
      return err
    }
    group := blocks[i*m : iMin((i+1)*m, len(blocks))]
    if err := writeIndexVertices(writer, group, level-1); err != nil {
      return err
    }
  }
  return nil
}

func writeIndex(writer io.WriteSeeker, blocks []bbiBlock, endFileOffset uint64) error {
  levels := 1
  for n := len(blocks); n > bbiBlockSize; n = divIntUp(n, bbiBlockSize) {
    levels++
  }
  start := bbiBlock{}
  end   := bbiBlock{}
  if len(blocks) > 0 {
    start = blocks[0]
    end   = blocks[len(blocks)-1]
  }
  for _, value := range []interface{}{
    uint32(IDX_MAGIC),
    uint32(bbiBlockSize),
    uint64(len(blocks)),
    start.ChromId, start.Start,
    end  .ChromId, end  .End,
    endFileOffset,
    uint32(bbiItemsPerSlot),
    uint32(0) } {
    if err := binary.Write(writer, binary.LittleEndian, value); err != nil {
      return err
    }
  }
  return writeIndexVertices(writer, blocks, levels)
}

func readIndexVertices(reader io.ReadSeeker, blocks []bbiBlock) ([]bbiBlock, error) {
  var isLeaf  uint8
  var padding uint8
  var nVals   uint16

  if err := binary.Read(reader, binary.LittleEndian, &isLeaf); err != nil {
    return nil, err
  }
  if err := binary.Read(reader, binary.LittleEndian, &padding); err != nil {
    return nil, err
  }
  if err := binary.Read(reader, binary.LittleEndian, &nVals); err != nil {
    return nil, err
  }
  if isLeaf != 0 {
    for i := 0; i < int(nVals); i++ {
      block := bbiBlock{}
      var endChromId uint32
      for _, ptr := range []interface{}{
        &block.ChromId, &block.Start, &endChromId, &block.End, &block.Offset, &block.Size } {
        if err := binary.Read(reader, binary.LittleEndian, ptr); err != nil {
          return nil, err
        }
      }
      blocks = append(blocks, block)
    }
    return blocks, nil
  }
  for i := 0; i < int(nVals); i++ {
    var bounds [4]uint32
    var position uint64
    if err := binary.Read(reader, binary.LittleEndian, &bounds); err != nil {
      return nil, err
    }
    if err := binary.Read(reader, binary.LittleEndian, &position); err != nil {
      return nil, err
    }
    currentPosition, _ := reader.Seek(0, io.SeekCurrent)
    if _, err := reader.Seek(int64(position), io.SeekStart); err != nil {
      return nil, err
    }
    tmp, err := readIndexVertices(reader, blocks)
    if err != nil {
      return nil, err
    }
    blocks = tmp
    if _, err := reader.Seek(currentPosition, io.SeekStart); err != nil {
      return nil, err
    }
  }
  return blocks, nil
}

func readIndex(reader io.ReadSeeker, offset uint64) ([]bbiBlock, error) {
  var magic  uint32
  var header [44]byte

  if _, err := reader.Seek(int64(offset), io.SeekStart); err != nil {
    return nil, err
  }
  if err := binary.Read(reader, binary.LittleEndian, &magic); err != nil {
    return nil, err
  }
  if magic != IDX_MAGIC {
    return nil, fmt.Errorf("invalid data index")
  }
  if err := binary.Read(reader, binary.LittleEndian, &header); err != nil {
    return nil, err
  }
  return readIndexVertices(reader, nil)
}

/* -------------------------------------------------------------------------- */

// WriteBigWig writes the given coverage records as a bigWig file. The
// records must be sorted by (seqname, from) and non-overlapping, which
// holds for the output of AggregateRegions and SmoothBedGraph. Records
// reaching beyond the chromosome end are truncated. Records on
// chromosomes not part of the genome cause an error. No zoom levels
// are written.
func WriteBigWig(writer io.WriteSeeker, records []BedGraphRecord, genome Genome) error {
  header  := newBbiHeader()
  summary := bbiSummary{}
  tree    := newChromTree(genome)

  // reserve space for the file header and the total summary
  if err := header.Write(writer); err != nil {
    return err
  }
  header.SummaryOffset = 64
  if err := binary.Write(writer, binary.LittleEndian, summary); err != nil {
    return err
  }
  if offset, err := writer.Seek(0, io.SeekCurrent); err != nil {
    return err
  } else {
    header.CtOffset = uint64(offset)
  }
  if err := tree.Write(writer); err != nil {
    return err
  }
  if offset, err := writer.Seek(0, io.SeekCurrent); err != nil {
    return err
  } else {
    header.DataOffset = uint64(offset)
  }
  // number of blocks, patched after the data section is written
  if err := binary.Write(writer, binary.LittleEndian, uint64(0)); err != nil {
    return err
  }
  blocks  := []bbiBlock{}
  bufSize := 0
  for i := 0; i < len(records); {
    chromId, ok := tree.Id(records[i].Seqname)
    if !ok {
      return fmt.Errorf("bigWig: unknown chromosome `%s'", records[i].Seqname)
    }
    j := i
    for j < len(records) && j-i < bbiItemsPerSlot && records[j].Seqname == records[i].Seqname {
      seqLength := int(tree.Sizes[chromId])
      if records[j].From >= seqLength {
        return fmt.Errorf("bigWig: record `%s' lies beyond the chromosome end", records[j].Region().String())
      }
      if records[j].To > seqLength {
        records[j].To = seqLength
      }
      summary.add(records[j])
      j++
    }
    raw := encodeBlock(chromId, records[i:j])
    if len(raw) > bufSize {
      bufSize = len(raw)
    }
    compressed, err := compressSlice(raw)
    if err != nil {
      return err
    }
    offset, err := writer.Seek(0, io.SeekCurrent)
    if err != nil {
      return err
    }
    if _, err := writer.Write(compressed); err != nil {
      return err
    }
    blocks = append(blocks, bbiBlock{
      ChromId: chromId,
      Start  : uint32(records[i].From),
      End    : uint32(records[j-1].To),
      Offset : uint64(offset),
      Size   : uint64(len(compressed))})
    i = j
  }
  if err := writeAt(writer, int64(header.DataOffset), uint64(len(blocks))); err != nil {
    return err
  }
  if offset, err := writer.Seek(0, io.SeekCurrent); err != nil {
    return err
  } else {
    header.IndexOffset = uint64(offset)
  }
  endFileOffset := header.IndexOffset
  if err := writeIndex(writer, blocks, endFileOffset); err != nil {
    return err
  }
  header.BufSize = uint32(bufSize)
  if err := summary.Write(writer, header.SummaryOffset); err != nil {
    return err
  }
  return header.Write(writer)
}

// ReadBigWig parses a bigWig file written by WriteBigWig and returns
// the genome stored in the chromosome tree together with all coverage
// records.
func ReadBigWig(reader io.ReadSeeker) (Genome, []BedGraphRecord, error) {
  header := bbiHeader{}
  if err := header.Read(reader); err != nil {
    return Genome{}, nil, err
  }
  tree := chromTree{}
  if err := tree.Read(reader, header.CtOffset); err != nil {
    return Genome{}, nil, err
  }
  blocks, err := readIndex(reader, header.IndexOffset)
  if err != nil {
    return Genome{}, nil, err
  }
  if uint64(len(blocks)) != header.NBlocks {
    return Genome{}, nil, fmt.Errorf("data index lists %d blocks but the header expects %d", len(blocks), header.NBlocks)
  }
  records := []BedGraphRecord{}
  for _, block := range blocks {
    buffer := make([]byte, block.Size)
    if _, err := reader.Seek(int64(block.Offset), io.SeekStart); err != nil {
      return Genome{}, nil, err
    }
    if _, err := io.ReadFull(reader, buffer); err != nil {
      return Genome{}, nil, err
    }
    if header.BufSize > 0 {
      if buffer, err = uncompressSlice(buffer); err != nil {
        return Genome{}, nil, err
      }
    }
    blockHeader, blockRecords, err := decodeBlock(buffer)
    if err != nil {
      return Genome{}, nil, err
    }
    if int(blockHeader.ChromId) >= len(tree.Names) {
      return Genome{}, nil, fmt.Errorf("data block references invalid chromosome id `%d'", blockHeader.ChromId)
    }
    for i := 0; i < len(blockRecords); i++ {
      blockRecords[i].Seqname = tree.Names[blockHeader.ChromId]
    }
    records = append(records, blockRecords...)
  }
  return tree.Genome(), records, nil
}
