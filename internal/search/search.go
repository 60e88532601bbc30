package search

// Result is a single search hit returned to the caller.
type Result struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Snippet   string `json:"snippet"`
	Category  string `json:"category"`
	Client    string `json:"client"`
	MSANumber string `json:"msa_number"`
}

// Query describes a search request.
type Query struct {
	Text           string
	FilterCategory string // empty = all categories
	FilterMSA      string // canonical key, empty = all agreements
	Limit          int
	Offset         int
}

// Response is the envelope returned for a search.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push document records into a search index.
type Indexer interface {
	IndexDocument(rec DocumentRecord) error
	IndexDocuments(recs []DocumentRecord) error
	DeleteDocument(id string) error
}

// DocumentRecord is the data we index for a document. Identifier fields are
// indexed verbatim so searches hit both raw and canonical forms.
type DocumentRecord struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Client        string `json:"client"`
	Category      string `json:"category"`
	Status        string `json:"status"`
	MSANumber     string `json:"msa_number"`
	PONumber      string `json:"po_number"`
	InvoiceNumber string `json:"invoice_number"`
}
