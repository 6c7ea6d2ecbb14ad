package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
)

// buildIndexMapping creates the Bleve mapping for note documents.
// Prose fields use English stemming, tags and ownership are exact keywords.
func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = en.AnalyzerName

	docMapping := bleve.NewDocumentMapping()

	text := func(store, vectors bool) *mapping.FieldMapping {
		fm := bleve.NewTextFieldMapping()
		fm.Analyzer = en.AnalyzerName
		fm.Store = store
		fm.IncludeTermVectors = vectors
		return fm
	}
	kw := func(store bool) *mapping.FieldMapping {
		fm := bleve.NewKeywordFieldMapping()
		fm.Analyzer = keyword.Name
		fm.Store = store
		return fm
	}

	docMapping.AddFieldMappingsAt("title", text(true, true))
	docMapping.AddFieldMappingsAt("summary", text(true, true))
	// Content can be large; searchable only.
	docMapping.AddFieldMappingsAt("content", text(false, false))

	urlMapping := bleve.NewTextFieldMapping()
	urlMapping.Analyzer = simple.Name
	urlMapping.Store = true
	docMapping.AddFieldMappingsAt("url", urlMapping)

	docMapping.AddFieldMappingsAt("id", kw(true))
	docMapping.AddFieldMappingsAt("user_id", kw(false))
	docMapping.AddFieldMappingsAt("type", kw(true))
	docMapping.AddFieldMappingsAt("status", kw(true))
	docMapping.AddFieldMappingsAt("tags", kw(true))

	created := bleve.NewNumericFieldMapping()
	created.Store = true
	docMapping.AddFieldMappingsAt("created_at", created)

	indexMapping.DefaultMapping = docMapping
	return indexMapping
}
