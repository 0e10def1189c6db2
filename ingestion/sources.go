package ingestion

import (
	"strconv"
	"time"

	"github.com/poiesic/corpus/core"
)

// IngestRequest describes one item to ingest. Build one directly or use the
// source-specific constructors below.
type IngestRequest struct {
	// Source determines how identity is computed.
	Source core.SourceType

	// URL is required for url sources and ignored otherwise.
	URL string

	// BaseURL is the crawl scope for url sources.
	BaseURL string

	// Identifier is required for file and text sources. For files this is
	// typically the filename; for text it is a caller-chosen name.
	Identifier string

	Title string

	// Text is the raw extracted text. It is normalized before hashing,
	// chunking, and storage.
	Text string

	ImagesCount int
	CrawledAt   time.Time

	// Metadata is stored opaquely on the record. Well-known keys are
	// defined in core.
	Metadata map[string]string
}

// CrawledPage is the shape produced by a web crawler for a single page.
type CrawledPage struct {
	URL            string
	BaseURL        string
	Title          string
	TextContent    string
	ContentSnippet string
	Images         []string
	ImagesCount    int
	CrawlTimestamp string // ISO-8601
}

// FileExtract is the shape produced by text extraction from an uploaded file.
type FileExtract struct {
	TextContent string
	Metadata    map[string]string
}

// RequestFromCrawledPage builds an IngestRequest for a crawled web page.
// A malformed crawl timestamp is ignored and left zero. The snippet is
// recomputed from the normalized text during ingest; the crawler's own
// snippet is not trusted.
func RequestFromCrawledPage(page CrawledPage) IngestRequest {
	crawledAt, _ := time.Parse(time.RFC3339, page.CrawlTimestamp)
	imagesCount := page.ImagesCount
	if imagesCount == 0 {
		imagesCount = len(page.Images)
	}
	return IngestRequest{
		Source:      core.SourceTypeURL,
		URL:         page.URL,
		BaseURL:     page.BaseURL,
		Title:       page.Title,
		Text:        page.TextContent,
		ImagesCount: imagesCount,
		CrawledAt:   crawledAt,
	}
}

// RequestFromFileExtract builds an IngestRequest for an extracted file.
// The filename becomes both the identifier and stored metadata.
func RequestFromFileExtract(filename string, size int64, extract FileExtract) IngestRequest {
	metadata := make(map[string]string, len(extract.Metadata)+2)
	for k, v := range extract.Metadata {
		metadata[k] = v
	}
	metadata[core.MetaFilename] = filename
	if size > 0 {
		metadata[core.MetaFileSize] = strconv.FormatInt(size, 10)
	}

	return IngestRequest{
		Source:     core.SourceTypeFile,
		Identifier: filename,
		Title:      filename,
		Text:       extract.TextContent,
		Metadata:   metadata,
	}
}

// RequestFromText builds an IngestRequest for directly submitted text.
func RequestFromText(identifier, title, text string) IngestRequest {
	return IngestRequest{
		Source:     core.SourceTypeText,
		Identifier: identifier,
		Title:      title,
		Text:       text,
		Metadata: map[string]string{
			core.MetaIdentifier: identifier,
		},
	}
}
