// Package clientset reads and writes the client_set.bin file spec.md
// §6's CLI surface hands to the client binary: a flat, length-prefixed
// list of 32-byte items to query against a serving layout. It carries
// no labels — the client does not know, and is not meant to know,
// which of its items the server holds until it decodes a response.
package clientset

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/Janmajayamall/ulpsi/internal/ulpsi"
)

// Marshal encodes items as a u32 count followed by count*32 raw bytes,
// mirroring internal/ulpsi/wire.go's length-prefixed record style.
func Marshal(items []ulpsi.Item) []byte {
	buf := make([]byte, 4+len(items)*32)
	binary.BigEndian.PutUint32(buf[:4], uint32(len(items)))
	for i, item := range items {
		copy(buf[4+i*32:4+(i+1)*32], item[:])
	}
	return buf
}

// Unmarshal decodes a buffer produced by Marshal.
func Unmarshal(data []byte) ([]ulpsi.Item, error) {
	r := bytes.NewReader(data)
	var count uint32
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return nil, fmt.Errorf("reading item count: %w", err)
	}
	items := make([]ulpsi.Item, count)
	for i := range items {
		if _, err := io.ReadFull(r, items[i][:]); err != nil {
			return nil, fmt.Errorf("reading item %d: %w", i, err)
		}
	}
	return items, nil
}
