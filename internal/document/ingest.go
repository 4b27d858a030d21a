package document

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	chatdberrors "github.com/shakram02/go-chatdb/internal/errors"
)

// FileExtension is the only file type accepted for document uploads.
const FileExtension = ".json"

// ValidateCollectionName rejects names MongoDB would refuse or reserve.
func ValidateCollectionName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return chatdberrors.New(chatdberrors.ErrTypeValidation, "collection name must not be empty")
	case strings.ContainsAny(name, "$\x00"):
		return chatdberrors.Newf(chatdberrors.ErrTypeValidation, "collection name %q must not contain '$' or NUL", name)
	case strings.HasPrefix(name, "system."):
		return chatdberrors.Newf(chatdberrors.ErrTypeValidation, "collection name %q uses the reserved system. prefix", name)
	}
	return nil
}

// ParseDocuments parses Extended JSON holding either one document or an
// array of documents.
func ParseDocuments(data []byte) ([]bson.D, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, chatdberrors.New(chatdberrors.ErrTypeParse, "file contains no JSON")
	}

	if trimmed[0] != '[' {
		doc, err := parseDocument(trimmed)
		if err != nil {
			return nil, chatdberrors.Wrap(err, chatdberrors.ErrTypeParse, "invalid JSON document")
		}
		return []bson.D{doc}, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, chatdberrors.Wrap(err, chatdberrors.ErrTypeParse, "invalid JSON array")
	}
	if len(items) == 0 {
		return nil, chatdberrors.New(chatdberrors.ErrTypeParse, "JSON array holds no documents")
	}

	docs := make([]bson.D, 0, len(items))
	for i, item := range items {
		doc, err := parseDocument(item)
		if err != nil {
			return nil, chatdberrors.Wrapf(err, chatdberrors.ErrTypeParse, "invalid document %d", i+1)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// IngestFile inserts the documents of a JSON file into collection and
// returns how many were inserted.
func (s *Store) IngestFile(ctx context.Context, path, collection string) (int, error) {
	if !strings.EqualFold(filepath.Ext(path), FileExtension) {
		return 0, chatdberrors.Newf(chatdberrors.ErrTypeValidation, "invalid file format for %s: %s", StoreName, path).
			WithSuggestion("Provide a .json file")
	}
	if err := ValidateCollectionName(collection); err != nil {
		return 0, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, chatdberrors.Newf(chatdberrors.ErrTypeFileSystem, "file not found: %s", path)
		}
		return 0, chatdberrors.Wrapf(err, chatdberrors.ErrTypeFileSystem, "failed to read %s", path)
	}

	docs, err := ParseDocuments(data)
	if err != nil {
		return 0, err
	}
	return s.Insert(ctx, collection, docs)
}

// Insert writes documents into collection.
func (s *Store) Insert(ctx context.Context, collection string, docs []bson.D) (int, error) {
	ctx, cancel := s.operationContext(ctx)
	defer cancel()

	coll := s.db.Collection(collection)
	if len(docs) == 1 {
		if _, err := coll.InsertOne(ctx, docs[0]); err != nil {
			return 0, chatdberrors.Wrapf(err, chatdberrors.ErrTypeExecution, "failed to insert into %q", collection)
		}
	} else {
		batch := make([]interface{}, len(docs))
		for i, doc := range docs {
			batch[i] = doc
		}
		if _, err := coll.InsertMany(ctx, batch); err != nil {
			return 0, chatdberrors.Wrapf(err, chatdberrors.ErrTypeExecution, "failed to insert into %q", collection)
		}
	}

	s.logger.Info("documents inserted",
		zap.String("collection", collection),
		zap.Int("documents", len(docs)))
	return len(docs), nil
}

// DropCollections drops the named collections after checking each against
// the live collection list.
func (s *Store) DropCollections(ctx context.Context, names []string) error {
	existing, err := s.ListCollections(ctx)
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(existing))
	for _, name := range existing {
		known[name] = true
	}
	for _, name := range names {
		if !known[name] {
			return chatdberrors.Newf(chatdberrors.ErrTypeValidation, "unknown collection %q", name)
		}
	}

	for _, name := range names {
		dropCtx, cancel := s.operationContext(ctx)
		err := s.db.Collection(name).Drop(dropCtx)
		cancel()
		if err != nil {
			return chatdberrors.Wrapf(err, chatdberrors.ErrTypeExecution, "failed to drop collection %q", name)
		}
		s.logger.Info("collection dropped", zap.String("collection", name))
	}
	return nil
}

// DropDatabase drops the selected database.
func (s *Store) DropDatabase(ctx context.Context) error {
	ctx, cancel := s.operationContext(ctx)
	defer cancel()

	name := s.db.Name()
	if err := s.db.Drop(ctx); err != nil {
		return chatdberrors.Wrapf(err, chatdberrors.ErrTypeExecution, "failed to drop database %q", name)
	}
	s.logger.Info("database dropped", zap.String("database", name))
	return nil
}
