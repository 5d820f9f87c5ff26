package index

import (
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/adalundhe/lattice/core/errors"
)

// KeywordDoc is the document shape indexed per module for full-text search.
type KeywordDoc struct {
	ModuleID    string `json:"module_id"`
	Name        string `json:"name"`
	ModuleType  string `json:"module_type"`
	Description string `json:"description"`
	Content     string `json:"content"`
}

// KeywordHit is a single full-text search result.
type KeywordHit struct {
	ModuleID string
	Score    float64
}

// KeywordIndex wraps a Bleve index over module text. It complements the
// vector index for exact-term lookups that dense retrieval handles poorly.
type KeywordIndex struct {
	path  string
	index bleve.Index
}

// OpenKeywordIndex opens an existing index at path, or creates one with the
// module document mapping.
func OpenKeywordIndex(path string) (*KeywordIndex, error) {
	idx, err := bleve.Open(path)
	if err != nil {
		idx, err = bleve.New(path, buildKeywordMapping())
		if err != nil {
			return nil, errors.Wrap(errors.KindConfiguration, err, "create keyword index at %s", path)
		}
	}
	return &KeywordIndex{path: path, index: idx}, nil
}

func buildKeywordMapping() mapping.IndexMapping {
	docMapping := bleve.NewDocumentMapping()

	textField := bleve.NewTextFieldMapping()
	docMapping.AddFieldMappingsAt("name", textField)
	docMapping.AddFieldMappingsAt("description", textField)
	docMapping.AddFieldMappingsAt("content", textField)

	// exact-match fields, not analyzed
	keywordField := bleve.NewTextFieldMapping()
	keywordField.Analyzer = keyword.Name
	docMapping.AddFieldMappingsAt("module_id", keywordField)
	docMapping.AddFieldMappingsAt("module_type", keywordField)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	return indexMapping
}

// Rebuild replaces the index contents with docs in a single batch. Existing
// documents not in docs are removed by recreating the index from scratch.
func (k *KeywordIndex) Rebuild(docs []KeywordDoc) error {
	if err := k.index.Close(); err != nil {
		return errors.Wrap(errors.KindConfiguration, err, "close keyword index")
	}
	if err := os.RemoveAll(k.path); err != nil {
		return errors.Wrap(errors.KindConfiguration, err, "reset keyword index at %s", k.path)
	}

	idx, err := bleve.New(k.path, buildKeywordMapping())
	if err != nil {
		return errors.Wrap(errors.KindConfiguration, err, "recreate keyword index at %s", k.path)
	}
	k.index = idx

	batch := k.index.NewBatch()
	for _, doc := range docs {
		if err := batch.Index(doc.ModuleID, doc); err != nil {
			return errors.Wrap(errors.KindConfiguration, err, "index module %s", doc.ModuleID)
		}
	}
	return k.index.Batch(batch)
}

// Search runs a match query over module text, optionally restricted by
// module type, returning up to limit hits by descending score.
func (k *KeywordIndex) Search(queryStr, typeFilter string, limit int) ([]KeywordHit, error) {
	if limit <= 0 {
		limit = 10
	}

	matchQuery := bleve.NewMatchQuery(queryStr)

	var req *bleve.SearchRequest
	if typeFilter != "" {
		termQuery := bleve.NewTermQuery(typeFilter)
		termQuery.SetField("module_type")

		boolQuery := bleve.NewBooleanQuery()
		boolQuery.AddMust(matchQuery, termQuery)
		req = bleve.NewSearchRequest(boolQuery)
	} else {
		req = bleve.NewSearchRequest(matchQuery)
	}
	req.Size = limit

	result, err := k.index.Search(req)
	if err != nil {
		return nil, errors.Wrap(errors.KindUnknown, err, "keyword search")
	}

	hits := make([]KeywordHit, 0, len(result.Hits))
	for _, hit := range result.Hits {
		hits = append(hits, KeywordHit{ModuleID: hit.ID, Score: hit.Score})
	}
	return hits, nil
}

// DocCount reports the number of indexed documents.
func (k *KeywordIndex) DocCount() (uint64, error) {
	return k.index.DocCount()
}

// Close releases the underlying index.
func (k *KeywordIndex) Close() error {
	return k.index.Close()
}
