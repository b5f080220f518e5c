package model

// ExtractionMethod records how the text of a source document was obtained
type ExtractionMethod string

const (
	MethodTextLayer ExtractionMethod = "text_layer" // Embedded PDF text layer
	MethodOCR       ExtractionMethod = "ocr"        // Rasterized pages run through OCR
	MethodPlainText ExtractionMethod = "plain_text" // Plain text file, read as-is
	MethodHTML      ExtractionMethod = "html"       // Visible text of an HTML page
)

// Document is one source file of a pipeline run
type Document struct {
	Label  string           `json:"label"`            // Stem of the source file name
	Path   string           `json:"path"`             // Location of the source file
	Method ExtractionMethod `json:"method,omitempty"` // Filled in once extraction succeeds
}

// Segment is a bounded chunk of a document's cleaned text
type Segment struct {
	Document string `json:"document"` // Owning document label
	Index    int    `json:"index"`    // 0-based position in document order
	Text     string `json:"text"`
}
