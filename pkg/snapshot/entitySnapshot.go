package snapshot

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/range-protocol/vault-sidecar/internal/version"
	"github.com/range-protocol/vault-sidecar/pkg/entities"
	"github.com/range-protocol/vault-sidecar/pkg/entityStore"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
	"golang.org/x/xerrors"
)

const importChunkSize = 1000

// EntitySnapshotHeader is the first line of an entity snapshot file.
type EntitySnapshotHeader struct {
	Version   string         `json:"version"`
	CreatedAt time.Time      `json:"createdAt"`
	Counts    map[string]int `json:"counts"`
}

type entityLine struct {
	Type string          `json:"type"`
	Id   string          `json:"id"`
	Data json.RawMessage `json:"data"`
}

// EntitySnapshotter exports the whole entity store to a JSON-lines file and loads
// it back. It works with any IEntityStore backend.
type EntitySnapshotter struct {
	store        entityStore.IEntityStore
	logger       *zap.Logger
	showProgress bool
}

func NewEntitySnapshotter(store entityStore.IEntityStore, l *zap.Logger, showProgress bool) *EntitySnapshotter {
	return &EntitySnapshotter{
		store:        store,
		logger:       l,
		showProgress: showProgress,
	}
}

func (e *EntitySnapshotter) newBar(description string) *progressbar.ProgressBar {
	if e.showProgress {
		return progressbar.Default(-1, description)
	}
	return progressbar.DefaultSilent(-1, description)
}

// Export writes every entity to path and returns the header it wrote.
func (e *EntitySnapshotter) Export(path string) (*EntitySnapshotHeader, error) {
	records := make(map[string][][]byte, len(entities.EntityTypes))
	header := &EntitySnapshotHeader{
		Version:   version.GetVersion(),
		CreatedAt: time.Now().UTC(),
		Counts:    make(map[string]int, len(entities.EntityTypes)),
	}
	for _, entityType := range entities.EntityTypes {
		values, err := e.store.ListByType(entityType)
		if err != nil {
			return nil, xerrors.Errorf("failed to list %s: %w", entityType, err)
		}
		records[entityType] = values
		header.Counts[entityType] = len(values)
	}

	tmp := tempPathFor(path)
	file, err := os.Create(tmp)
	if err != nil {
		return nil, xerrors.Errorf("failed to create %s: %w", tmp, err)
	}
	defer os.Remove(tmp)

	bar := e.newBar("exporting entities")
	w := bufio.NewWriter(file)
	enc := json.NewEncoder(w)
	if err := enc.Encode(header); err != nil {
		file.Close()
		return nil, err
	}
	for _, entityType := range entities.EntityTypes {
		for _, data := range records[entityType] {
			var id struct {
				Id string `json:"id"`
			}
			if err := json.Unmarshal(data, &id); err != nil {
				file.Close()
				return nil, xerrors.Errorf("failed to read id of %s record: %w", entityType, err)
			}
			if err := enc.Encode(&entityLine{Type: entityType, Id: id.Id, Data: data}); err != nil {
				file.Close()
				return nil, err
			}
			_ = bar.Add(1)
		}
	}
	_ = bar.Finish()
	if err := w.Flush(); err != nil {
		file.Close()
		return nil, err
	}
	if err := file.Close(); err != nil {
		return nil, err
	}
	if err := os.Rename(tmp, path); err != nil {
		return nil, xerrors.Errorf("failed to move snapshot into place: %w", err)
	}

	e.logger.Sugar().Infow("Exported entity snapshot", zap.String("path", path), zap.Any("counts", header.Counts))
	return header, nil
}

// Import writes every entity of the snapshot at path into the store. Existing
// records with the same id are overwritten.
func (e *EntitySnapshotter) Import(path string) (*EntitySnapshotHeader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, xerrors.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	dec := json.NewDecoder(bufio.NewReader(file))
	header := &EntitySnapshotHeader{}
	if err := dec.Decode(header); err != nil {
		return nil, xerrors.Errorf("failed to read snapshot header: %w", err)
	}

	bar := e.newBar("importing entities")
	counts := make(map[string]int)
	ops := make([]*entityStore.Operation, 0, importChunkSize)
	flush := func() error {
		if len(ops) == 0 {
			return nil
		}
		if err := e.store.Write(ops); err != nil {
			return err
		}
		_ = bar.Add(len(ops))
		ops = make([]*entityStore.Operation, 0, importChunkSize)
		return nil
	}
	for dec.More() {
		line := &entityLine{}
		if err := dec.Decode(line); err != nil {
			return nil, xerrors.Errorf("failed to read snapshot record: %w", err)
		}
		ops = append(ops, &entityStore.Operation{
			Kind:       entityStore.OperationKind_Put,
			EntityType: line.Type,
			Id:         line.Id,
			Data:       line.Data,
		})
		counts[line.Type]++
		if len(ops) == importChunkSize {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}
	_ = bar.Finish()

	for entityType, expected := range header.Counts {
		if counts[entityType] != expected {
			return nil, fmt.Errorf("snapshot is truncated: %s has %d of %d records", entityType, counts[entityType], expected)
		}
	}
	e.logger.Sugar().Infow("Imported entity snapshot", zap.String("path", path), zap.Any("counts", counts))
	return header, nil
}
