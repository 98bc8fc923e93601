// Package meta describes a generated file: name, size, creation time and an fnv-64a checksum.
package meta

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash/fnv"
	"io"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
)

type Metadata struct {
	Filename  string
	Size      int64
	timestamp int64
	checksum  uint64
}

func New(filename string) Metadata {
	return Metadata{
		Filename:  filepath.Base(filename),
		timestamp: time.Now().Unix(),
	}
}

// Compute hashes src and records its size.
func Compute(filename string, src io.Reader) (Metadata, error) {
	m := New(filename)
	sum, n, err := generateChecksum(src)
	if err != nil {
		return Metadata{}, err
	}
	m.checksum, m.Size = sum, n
	return m, nil
}

func (m *Metadata) IsOk() bool {
	return len(m.Filename) > 0 && m.timestamp > 0
}

func (m *Metadata) Print() string {
	return fmt.Sprintf("Filename: %s, Size: %s, Checksum: %s, Created: %s",
		m.Filename, humanize.IBytes(uint64(m.Size)), m.ChecksumHex(), m.FormatDatetime())
}

func (m *Metadata) FormatDatetime() string {
	t := time.Unix(m.timestamp, 0)
	localTime := t.Local()
	return localTime.Format(time.RFC822)
}

func (m *Metadata) Timestamp() time.Time {
	return time.Unix(m.timestamp, 0)
}

func (m *Metadata) ChecksumHex() string {
	return hex.EncodeToString(convertUint64ToBytes(m.checksum))
}

// Validate re-hashes src and compares size and checksum.
func (m *Metadata) Validate(src io.Reader) (bool, error) {
	checksum, n, err := generateChecksum(src)
	if err != nil {
		return false, err
	}
	return checksum == m.checksum && n == m.Size, nil
}

func generateChecksum(src io.Reader) (uint64, int64, error) {
	hasher := fnv.New64a()
	n, err := io.Copy(hasher, src)
	if err != nil {
		return 0, 0, fmt.Errorf("meta: hashing: %w", err)
	}
	return hasher.Sum64(), n, nil
}

func convertUint64ToBytes(num uint64) []byte {
	byteArray := make([]byte, 8)
	binary.BigEndian.PutUint64(byteArray, num)
	return byteArray
}
