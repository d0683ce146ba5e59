package vocabfile

import (
	"bytes"
	"compress/flate"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/tokpipe/tokpipe/vocab"
)

// Binary vocabulary archive format, adapted from the teacher's stage-framed
// archive wire format (archive.go): named, length-prefixed stages so
// unknown/future stages can be skipped rather than breaking the reader.
// Unlike the teacher's archive, which carries compressed corpus data plus
// its dictionary, this format carries only a frozen token list — the
// spec.md §6 JSON format remains the required output; this is an optional,
// more compact companion for very large vocabularies.
const (
	archiveMagic   = "TKV1"
	archiveVersion = uint16(1)

	stageDictionary      = "dictionary"
	stageTokenBoundaries = "token_boundaries"

	maxStagePayloadBytes = 1 << 28 // 256 MiB
)

func writeStage(w io.Writer, name string, payload []byte) error {
	if len(name) == 0 || len(name) > 255 {
		return fmt.Errorf("vocabfile: invalid stage name length %d", len(name))
	}
	if len(payload) > maxStagePayloadBytes {
		return fmt.Errorf("vocabfile: stage %q payload too large: %d", name, len(payload))
	}
	if err := binary.Write(w, binary.LittleEndian, uint8(len(name))); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(payload))); err != nil {
		return err
	}
	if _, err := io.WriteString(w, name); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

func readStage(r io.Reader) (name string, payload []byte, err error) {
	var nameLen uint8
	if err = binary.Read(r, binary.LittleEndian, &nameLen); err != nil {
		return "", nil, err
	}
	var dataLen uint32
	if err = binary.Read(r, binary.LittleEndian, &dataLen); err != nil {
		return "", nil, err
	}
	if dataLen > maxStagePayloadBytes {
		return "", nil, fmt.Errorf("vocabfile: stage payload too large: %d", dataLen)
	}
	nameBytes := make([]byte, nameLen)
	if _, err = io.ReadFull(r, nameBytes); err != nil {
		return "", nil, err
	}
	payload = make([]byte, dataLen)
	if _, err = io.ReadFull(r, payload); err != nil {
		return "", nil, err
	}
	return string(nameBytes), payload, nil
}

// WriteBinary writes v as a compact binary archive: a flate-compressed
// concatenated dictionary of token bytes, plus delta-varint-encoded token
// boundaries into that dictionary.
func WriteBinary(w io.Writer, v *vocab.Vocabulary) error {
	if _, err := io.WriteString(w, archiveMagic); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, archiveVersion); err != nil {
		return err
	}

	var dict bytes.Buffer
	boundaries := make([]uint32, 1, v.Len()+1)
	for _, t := range v.Tokens() {
		dict.Write(t.Bytes)
		boundaries = append(boundaries, uint32(dict.Len()))
	}

	compressedDict, err := flateCompress(dict.Bytes())
	if err != nil {
		return fmt.Errorf("vocabfile: compressing dictionary: %w", err)
	}
	if err := writeStage(w, stageDictionary, compressedDict); err != nil {
		return err
	}

	boundaryPayload := encodeDeltaVarint(boundaries)
	compressedBoundaries, err := flateCompress(boundaryPayload)
	if err != nil {
		return fmt.Errorf("vocabfile: compressing token boundaries: %w", err)
	}
	return writeStage(w, stageTokenBoundaries, compressedBoundaries)
}

// ReadBinary parses a binary archive written by WriteBinary back into a
// Vocabulary. Unknown stages (future extensions) are tolerated and
// skipped.
func ReadBinary(r io.Reader) (*vocab.Vocabulary, error) {
	magic := make([]byte, len(archiveMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, fmt.Errorf("vocabfile: reading magic: %w", err)
	}
	if string(magic) != archiveMagic {
		return nil, fmt.Errorf("vocabfile: bad magic %q", magic)
	}
	var version uint16
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, fmt.Errorf("vocabfile: reading version: %w", err)
	}
	if version != archiveVersion {
		return nil, fmt.Errorf("vocabfile: unsupported archive version %d", version)
	}

	var dict, boundaryPayload []byte
	for {
		name, payload, err := readStage(r)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("vocabfile: reading stage: %w", err)
		}
		if name != stageDictionary && name != stageTokenBoundaries {
			// Unknown stage: skip without decoding its payload.
			continue
		}
		decompressed, err := flateDecompress(payload)
		if err != nil {
			return nil, fmt.Errorf("vocabfile: decompressing stage %q: %w", name, err)
		}
		switch name {
		case stageDictionary:
			dict = decompressed
		case stageTokenBoundaries:
			boundaryPayload = decompressed
		default:
			// Unknown stage: skip, per the stage-framing contract.
		}
	}

	boundaries, err := decodeDeltaVarint(boundaryPayload)
	if err != nil {
		return nil, fmt.Errorf("vocabfile: decoding token boundaries: %w", err)
	}
	if len(boundaries) == 0 {
		return nil, fmt.Errorf("vocabfile: missing token boundaries stage")
	}

	tokens := make([][]byte, 0, len(boundaries)-1)
	for i := 0; i+1 < len(boundaries); i++ {
		start, end := boundaries[i], boundaries[i+1]
		if end > uint32(len(dict)) || start > end {
			return nil, fmt.Errorf("vocabfile: corrupted token boundaries at index %d", i)
		}
		tokens = append(tokens, dict[start:end])
	}

	v := vocab.NewFromTokens(tokens)
	if err := v.Validate(); err != nil {
		return nil, fmt.Errorf("vocabfile: %w", err)
	}
	return v, nil
}

func flateCompress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	fw, err := flate.NewWriter(&buf, flate.BestSpeed)
	if err != nil {
		return nil, err
	}
	if _, err := fw.Write(data); err != nil {
		return nil, err
	}
	if err := fw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func flateDecompress(data []byte) ([]byte, error) {
	fr := flate.NewReader(bytes.NewReader(data))
	defer fr.Close()
	return io.ReadAll(fr)
}

// encodeDeltaVarint stores the number of boundaries, then boundaries[0] and
// the delta of each later boundary from its predecessor, all as uvarints,
// mirroring the teacher's delta-encoded boundary stage param.
func encodeDeltaVarint(boundaries []uint32) []byte {
	buf := make([]byte, 0, len(boundaries)*2)
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], uint64(len(boundaries)))
	buf = append(buf, tmp[:n]...)

	var prev uint32
	for _, b := range boundaries {
		delta := b - prev
		prev = b
		n := binary.PutUvarint(tmp[:], uint64(delta))
		buf = append(buf, tmp[:n]...)
	}
	return buf
}

func decodeDeltaVarint(data []byte) ([]uint32, error) {
	r := bytes.NewReader(data)
	count, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	out := make([]uint32, 0, count)
	var acc uint32
	for i := uint64(0); i < count; i++ {
		delta, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, err
		}
		acc += uint32(delta)
		out = append(out, acc)
	}
	return out, nil
}
