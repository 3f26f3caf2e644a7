package rtree

import (
	"encoding/gob"
	"fmt"
	"os"

	"github.com/cyrcle/cyrcle-geo/pkg/models"
	"github.com/klauspost/compress/zstd"
)

// IndexData represents the serializable form of the spot index
type IndexData struct {
	Spots []*models.Spot `json:"spots"`
	Count int64          `json:"count"`
}

// SaveToFile writes a zstd-compressed gob snapshot of the index
func (g *SpotIndex) SaveToFile(filename string) error {
	spots := g.All()
	data := IndexData{
		Spots: spots,
		Count: int64(len(spots)),
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	zw, err := zstd.NewWriter(file)
	if err != nil {
		return fmt.Errorf("failed to create compressor: %w", err)
	}

	if err := gob.NewEncoder(zw).Encode(data); err != nil {
		zw.Close()
		return fmt.Errorf("failed to encode data: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to flush compressor: %w", err)
	}
	return file.Close()
}

// LoadFromFile replaces the index content with a snapshot written by SaveToFile
func (g *SpotIndex) LoadFromFile(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	zr, err := zstd.NewReader(file)
	if err != nil {
		return fmt.Errorf("failed to create decompressor: %w", err)
	}
	defer zr.Close()

	var data IndexData
	if err := gob.NewDecoder(zr).Decode(&data); err != nil {
		return fmt.Errorf("failed to decode data: %w", err)
	}
	if int64(len(data.Spots)) != data.Count {
		return fmt.Errorf("corrupt snapshot: header says %d spots, found %d", data.Count, len(data.Spots))
	}

	// Clear existing index and rebuild
	g.Clear()
	if err := g.Insert(data.Spots...); err != nil {
		return fmt.Errorf("failed to index spots: %w", err)
	}
	return nil
}
