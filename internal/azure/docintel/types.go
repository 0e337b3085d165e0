package docintel

import "time"

// Operation is the body returned by the Operation-Location poll URL.
type Operation struct {
	Status              string        `json:"status"`
	CreatedDateTime     time.Time     `json:"createdDateTime"`
	LastUpdatedDateTime time.Time     `json:"lastUpdatedDateTime"`
	AnalyzeResult       AnalyzeResult `json:"analyzeResult"`
	Error               *ServiceError `json:"error,omitempty"`
}

// Operation statuses.
const (
	StatusNotStarted = "notStarted"
	StatusRunning    = "running"
	StatusSucceeded  = "succeeded"
	StatusFailed     = "failed"
	StatusCanceled   = "canceled"
)

// ServiceError is the error object Document Intelligence embeds in failed operations.
type ServiceError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// AnalyzeResult is the prebuilt-layout result.
type AnalyzeResult struct {
	APIVersion      string      `json:"apiVersion"`
	ModelID         string      `json:"modelId"`
	StringIndexType string      `json:"stringIndexType"`
	Content         string      `json:"content"`
	Pages           []Page      `json:"pages"`
	Paragraphs      []Paragraph `json:"paragraphs"`
	Figures         []Figure    `json:"figures"`
	ContentFormat   string      `json:"contentFormat"`
}

// Page is a single analyzed page.
type Page struct {
	PageNumber int     `json:"pageNumber"`
	Angle      float64 `json:"angle"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Unit       string  `json:"unit"`
	Words      []Word  `json:"words"`
	Lines      []Line  `json:"lines"`
	Spans      []Span  `json:"spans"`
}

type Word struct {
	Content    string    `json:"content"`
	Polygon    []float64 `json:"polygon"`
	Confidence float64   `json:"confidence"`
	Span       Span      `json:"span"`
}

type Line struct {
	Content string    `json:"content"`
	Polygon []float64 `json:"polygon"`
	Spans   []Span    `json:"spans"`
}

type Span struct {
	Offset int `json:"offset"`
	Length int `json:"length"`
}

type Paragraph struct {
	Role            string           `json:"role,omitempty"`
	Content         string           `json:"content"`
	Spans           []Span           `json:"spans"`
	BoundingRegions []BoundingRegion `json:"boundingRegions"`
}

// BoundingRegion locates content on a page. Polygon coordinates are in the
// page unit (inches for PDF input).
type BoundingRegion struct {
	PageNumber int       `json:"pageNumber"`
	Polygon    []float64 `json:"polygon"`
}

// Figure is a layout-detected figure. Its cropped image is fetched
// separately by id when the analysis was requested with output=figures.
type Figure struct {
	ID              string           `json:"id"`
	BoundingRegions []BoundingRegion `json:"boundingRegions"`
	Spans           []Span           `json:"spans"`
	Caption         *Caption         `json:"caption,omitempty"`
}

type Caption struct {
	Content string `json:"content"`
}

// PageNumber returns the first page the figure appears on, or 0.
func (f Figure) PageNumber() int {
	if len(f.BoundingRegions) == 0 {
		return 0
	}
	return f.BoundingRegions[0].PageNumber
}
